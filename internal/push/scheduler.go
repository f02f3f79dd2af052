package push

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
)

type ScheduleStore interface {
	DueScheduled(ctx context.Context, now time.Time) ([]models.ScheduledNotification, error)
	MarkScheduled(ctx context.Context, id int64, status string, sent, failed int, errMsg string, at time.Time) error
}

// Fanout is satisfied by *Service.
type Fanout interface {
	Send(ctx context.Context, req SendRequest) (Result, error)
}

// Scheduler delivers scheduled notifications once they are due.
type Scheduler struct {
	Store  ScheduleStore
	Fanout Fanout
	Logger logging.Logger
}

type ScheduleRun struct {
	Due    int
	Sent   int
	Failed int
}

// ProcessDue sends every pending notification due by now. With dryRun set
// the due list is only logged.
func (s *Scheduler) ProcessDue(ctx context.Context, now time.Time, dryRun bool) (ScheduleRun, error) {
	log := logging.OrDiscard(s.Logger)

	due, err := s.Store.DueScheduled(ctx, now)
	if err != nil {
		return ScheduleRun{}, err
	}
	run := ScheduleRun{Due: len(due)}

	for _, n := range due {
		entry := log.WithFields(logging.Fields{
			"notification_id": n.ID,
			"tenant_id":       n.TenantID,
			"segment":         n.SegmentType,
		})
		if dryRun {
			entry.WithField("title", n.Title).Info("dry run: would send scheduled notification")
			continue
		}

		status, errMsg := models.ScheduledSent, ""
		res, err := s.Fanout.Send(ctx, ScheduledRequest(n))
		switch {
		case err != nil:
			status, errMsg = models.ScheduledFailed, err.Error()
		case res.Success == 0:
			status = models.ScheduledFailed
			errMsg = fmt.Sprintf("no device reached (%d recipients, %d failures)", res.Recipients, res.Failure)
		}

		if err := s.Store.MarkScheduled(ctx, n.ID, status, res.Success, res.Failure, errMsg, now); err != nil {
			return run, fmt.Errorf("failed to mark scheduled notification %d: %w", n.ID, err)
		}
		if status == models.ScheduledSent {
			run.Sent++
		} else {
			run.Failed++
		}
		entry.WithFields(logging.Fields{
			"status":  status,
			"success": res.Success,
			"failure": res.Failure,
		}).Info("scheduled notification processed")
	}
	return run, nil
}

// ScheduledRequest converts a stored notification into a fan-out request.
func ScheduledRequest(n models.ScheduledNotification) SendRequest {
	data := map[string]string{
		"type":            n.Type,
		"notification_id": strconv.FormatInt(n.ID, 10),
	}
	segment := n.SegmentType
	if segment == "" {
		segment = "all"
	}
	return SendRequest{
		TenantID: n.TenantID,
		Title:    n.Title,
		Body:     n.Body,
		ImageURL: n.ImageURL,
		Data:     data,
		Source:   SourceScheduled,
		Segment:  segment,
		Tags:     SplitTags(n.SegmentTags),
		Search:   n.SegmentSearch,
	}
}
