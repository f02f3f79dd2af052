package push

import (
	"context"
	"errors"
)

// MaxBatchSize is the multicast limit of the delivery provider.
const MaxBatchSize = 500

// Message is the notification delivered to every token of a batch.
type Message struct {
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string
}

// BatchResult reports one multicast call. Invalid lists the tokens the
// provider rejected permanently.
type BatchResult struct {
	Success int
	Failure int
	Invalid []string
}

// Sender delivers one batch of at most MaxBatchSize tokens.
type Sender interface {
	SendBatch(ctx context.Context, tokens []string, msg Message) (BatchResult, error)
}

var ErrSenderDisabled = errors.New("push delivery is not configured")

// DisabledSender fails every batch. It stands in when no push credentials
// are configured so fan-out still resolves tokens and writes its audit.
type DisabledSender struct{}

func (DisabledSender) SendBatch(context.Context, []string, Message) (BatchResult, error) {
	return BatchResult{}, ErrSenderDisabled
}
