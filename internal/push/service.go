package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/metrics"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/store"
)

var ErrTenantRequired = errors.New("tenant is required")

const (
	StatusSkipped   = "skipped"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Sources recorded on the audit row.
const (
	SourceWebhook   = "sgp_webhook"
	SourceAdmin     = "admin_panel"
	SourceScheduled = "scheduled"
)

type Store interface {
	ListPushTokens(ctx context.Context, tenantID int64, f store.TokenFilter) ([]string, error)
	DeactivateTokens(ctx context.Context, tenantID int64, tokens []string) (int64, error)
	InsertNotificationAudit(ctx context.Context, a models.NotificationAudit) error
}

type SendRequest struct {
	TenantID int64
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string
	Source   string

	Target  string
	Segment string
	Tags    []string
	Search  string
}

type Result struct {
	Status     string `json:"status"`
	Recipients int    `json:"recipients"`
	Success    int    `json:"success"`
	Failure    int    `json:"failure"`
	Invalid    int    `json:"invalid_tokens"`
}

// Service fans a notification out to a tenant's devices.
type Service struct {
	Store     Store
	Sender    Sender
	Logger    logging.Logger
	BatchSize int
}

func NewService(st Store, sender Sender, logger logging.Logger) *Service {
	if sender == nil {
		sender = DisabledSender{}
	}
	return &Service{Store: st, Sender: sender, Logger: logging.OrDiscard(logger), BatchSize: MaxBatchSize}
}

// Send resolves the tenant's tokens for the request filter and delivers in
// batches. A failing batch is counted as failed and the next batch still
// runs. One audit row is written per call, also when the tokens cannot be
// listed.
func (s *Service) Send(ctx context.Context, req SendRequest) (Result, error) {
	if req.TenantID == 0 {
		return Result{}, ErrTenantRequired
	}
	log := logging.OrDiscard(s.Logger).WithFields(logging.Fields{
		"tenant_id": req.TenantID,
		"source":    req.Source,
	})

	tokens, err := s.Store.ListPushTokens(ctx, req.TenantID, store.TokenFilter{
		Target:  req.Target,
		Segment: req.Segment,
		Tags:    req.Tags,
		Search:  req.Search,
	})
	if err != nil {
		log.WithError(err).Error("failed to list push tokens")
		s.audit(ctx, log, req, Result{Status: StatusFailed})
		return Result{}, fmt.Errorf("failed to list push tokens: %w", err)
	}
	tokens = dedupe(tokens)

	res := Result{Status: StatusCompleted, Recipients: len(tokens)}
	if len(tokens) == 0 {
		res.Status = StatusSkipped
		log.Info("no push tokens for request")
		s.audit(ctx, log, req, res)
		return res, nil
	}

	size := s.BatchSize
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	msg := Message{Title: req.Title, Body: req.Body, ImageURL: req.ImageURL, Data: req.Data}

	var invalid []string
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		batch := tokens[start:end]

		br, err := s.Sender.SendBatch(ctx, batch, msg)
		if err != nil {
			log.WithError(err).WithField("batch_size", len(batch)).Error("push batch failed")
			res.Failure += len(batch)
			continue
		}
		res.Success += br.Success
		res.Failure += br.Failure
		invalid = append(invalid, br.Invalid...)
	}

	metrics.PushMessages.WithLabelValues("success").Add(float64(res.Success))
	metrics.PushMessages.WithLabelValues("failure").Add(float64(res.Failure))

	if len(invalid) > 0 {
		n, err := s.Store.DeactivateTokens(ctx, req.TenantID, invalid)
		if err != nil {
			log.WithError(err).Warn("failed to deactivate invalid tokens")
		} else {
			res.Invalid = int(n)
			metrics.PushInvalidTokens.Add(float64(n))
		}
	}

	log.WithFields(logging.Fields{
		"recipients": res.Recipients,
		"success":    res.Success,
		"failure":    res.Failure,
		"invalid":    res.Invalid,
	}).Info("push fan-out finished")

	s.audit(ctx, log, req, res)
	return res, nil
}

func (s *Service) audit(ctx context.Context, log logging.Entry, req SendRequest, res Result) {
	err := s.Store.InsertNotificationAudit(ctx, models.NotificationAudit{
		TenantID:     req.TenantID,
		Source:       req.Source,
		Title:        req.Title,
		Body:         req.Body,
		Status:       res.Status,
		Recipients:   res.Recipients,
		SuccessCount: res.Success,
		FailureCount: res.Failure,
	})
	if err != nil {
		log.WithError(err).Error("failed to write notification audit")
	}
}

// SplitTags turns a comma separated tag list into trimmed values.
func SplitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
