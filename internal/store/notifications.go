package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"isp-agent-service/internal/models"
)

// InsertNotificationAudit is insert-only; audit rows are never updated.
func (s *PostgresStore) InsertNotificationAudit(ctx context.Context, a models.NotificationAudit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_audit (tenant_id, source, title, body, status, recipients, success_count, failure_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.TenantID, a.Source, a.Title, a.Body, a.Status, a.Recipients, a.SuccessCount, a.FailureCount)
	if err != nil {
		return fmt.Errorf("failed to insert notification audit: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateScheduled(ctx context.Context, n models.ScheduledNotification) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO scheduled_notifications (tenant_id, title, body, type, image_url, segment_type, segment_tags, segment_search, scheduled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		n.TenantID, n.Title, n.Body, n.Type, n.ImageURL, n.SegmentType, n.SegmentTags, n.SegmentSearch, n.ScheduledAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create scheduled notification: %w", err)
	}
	return id, nil
}

// DueScheduled lists pending notifications due at or before now, oldest first.
func (s *PostgresStore) DueScheduled(ctx context.Context, now time.Time) ([]models.ScheduledNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, title, body, type, image_url, segment_type, segment_tags, segment_search, scheduled_at, status, created_at
		 FROM scheduled_notifications
		 WHERE status = 'pending' AND scheduled_at <= $1
		 ORDER BY scheduled_at, id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.ScheduledNotification, 0)
	for rows.Next() {
		var n models.ScheduledNotification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Title, &n.Body, &n.Type, &n.ImageURL, &n.SegmentType,
			&n.SegmentTags, &n.SegmentSearch, &n.ScheduledAt, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkScheduled(ctx context.Context, id int64, status string, sent, failed int, errMsg string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_notifications
		 SET status = $2, sent_count = $3, failed_count = $4, error_message = $5, processed_at = $6
		 WHERE id = $1`,
		id, status, sent, failed, errMsg, at)
	if err != nil {
		return fmt.Errorf("failed to update scheduled notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
