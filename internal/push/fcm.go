package push

import (
	"context"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"isp-agent-service/internal/logging"
)

// FCMSender delivers batches through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	logger logging.Logger
}

// NewFCMSender builds a sender from FIREBASE_CREDENTIALS, which is either a
// path to a service account file or the JSON document itself.
func NewFCMSender(ctx context.Context, credentials string, logger logging.Logger) (*FCMSender, error) {
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return nil, ErrSenderDisabled
	}

	var opt option.ClientOption
	if strings.HasPrefix(credentials, "{") {
		opt = option.WithCredentialsJSON([]byte(credentials))
	} else {
		if _, err := os.Stat(credentials); err != nil {
			return nil, fmt.Errorf("failed to read firebase credentials: %w", err)
		}
		opt = option.WithCredentialsFile(credentials)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase messaging: %w", err)
	}
	return &FCMSender{client: client, logger: logging.OrDiscard(logger)}, nil
}

func (s *FCMSender) SendBatch(ctx context.Context, tokens []string, msg Message) (BatchResult, error) {
	mm := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.ImageURL,
		},
		Data: msg.Data,
	}
	resp, err := s.client.SendEachForMulticast(ctx, mm)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to send multicast: %w", err)
	}

	out := BatchResult{Success: resp.SuccessCount, Failure: resp.FailureCount}
	for i, r := range resp.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		if isInvalidTokenError(r.Error) {
			out.Invalid = append(out.Invalid, tokens[i])
			continue
		}
		s.logger.WithFields(logging.Fields{
			"token": logging.TokenPreview(tokens[i]),
			"error": r.Error,
		}).Warn("push delivery failed")
	}
	return out, nil
}

func isInvalidTokenError(err error) bool {
	if err == nil {
		return false
	}
	if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
		return true
	}
	return IsInvalidTokenText(err.Error())
}

// IsInvalidTokenText matches provider error text for dead registrations.
func IsInvalidTokenText(s string) bool {
	s = strings.ToLower(s)
	for _, term := range []string{"invalid", "not registered", "registration token"} {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
