package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"isp-agent-service/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, tenantID, customerID int64) (models.ChatSession, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, tenant_id, customer_id) VALUES ($1, $2, $3)`,
		id, tenantID, customerID,
	); err != nil {
		return models.ChatSession{}, fmt.Errorf("failed to create session: %w", err)
	}
	return s.GetSession(ctx, customerID, id)
}

// GetSession only returns sessions owned by customerID.
func (s *PostgresStore) GetSession(ctx context.Context, customerID int64, sessionID string) (models.ChatSession, error) {
	var c models.ChatSession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, is_active, created_at, updated_at
		 FROM chat_sessions WHERE customer_id = $1 AND id = $2`,
		customerID, sessionID,
	).Scan(&c.ID, &c.TenantID, &c.CustomerID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *PostgresStore) touchSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendMessage adds one message to an existing session.
func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID, role, content string, paymentDisclosed bool) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := s.touchSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, payment_disclosed) VALUES ($1, $2, $3, $4)`,
		sessionID, role, content, paymentDisclosed,
	)
	return err
}

// ListMessages returns the newest limit messages in chronological order.
func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return []models.Message{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, payment_disclosed, created_at
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.PaymentDisclosed, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}
