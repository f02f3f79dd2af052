package push

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isp-agent-service/internal/models"
	"isp-agent-service/internal/store"
)

type fakeStore struct {
	tokens      map[int64][]string
	filters     []store.TokenFilter
	deactivated map[int64][]string
	audits      []models.NotificationAudit
	auditErr    error
	listErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: map[int64][]string{}, deactivated: map[int64][]string{}}
}

func (f *fakeStore) ListPushTokens(_ context.Context, tenantID int64, filter store.TokenFilter) ([]string, error) {
	f.filters = append(f.filters, filter)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.tokens[tenantID]...), nil
}

func (f *fakeStore) DeactivateTokens(_ context.Context, tenantID int64, tokens []string) (int64, error) {
	f.deactivated[tenantID] = append(f.deactivated[tenantID], tokens...)
	return int64(len(tokens)), nil
}

func (f *fakeStore) InsertNotificationAudit(_ context.Context, a models.NotificationAudit) error {
	f.audits = append(f.audits, a)
	return f.auditErr
}

// fakeSender marks tokens prefixed "dead-" invalid and fails the batch
// numbers listed in failBatches.
type fakeSender struct {
	batches     [][]string
	failBatches map[int]bool
}

func (s *fakeSender) SendBatch(_ context.Context, tokens []string, _ Message) (BatchResult, error) {
	n := len(s.batches)
	s.batches = append(s.batches, append([]string(nil), tokens...))
	if s.failBatches[n] {
		return BatchResult{}, errors.New("provider unavailable")
	}
	var r BatchResult
	for _, t := range tokens {
		if len(t) > 5 && t[:5] == "dead-" {
			r.Failure++
			r.Invalid = append(r.Invalid, t)
			continue
		}
		r.Success++
	}
	return r, nil
}

func makeTokens(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%04d", prefix, i)
	}
	return out
}

func TestSendRequiresTenant(t *testing.T) {
	st := newFakeStore()
	sender := &fakeSender{}
	svc := NewService(st, sender, nil)

	_, err := svc.Send(context.Background(), SendRequest{Title: "t", Body: "b"})
	require.ErrorIs(t, err, ErrTenantRequired)
	assert.Empty(t, st.filters)
	assert.Empty(t, sender.batches)
	assert.Empty(t, st.audits)
}

func TestSendBatchesOf500AndDedupes(t *testing.T) {
	st := newFakeStore()
	tokens := makeTokens("tok-", 1200)
	st.tokens[7] = append(tokens, tokens[0], tokens[1], "")
	st.tokens[8] = makeTokens("other-", 10)
	sender := &fakeSender{}
	svc := NewService(st, sender, nil)

	res, err := svc.Send(context.Background(), SendRequest{TenantID: 7, Title: "Aviso", Body: "Manutenção", Source: SourceAdmin})
	require.NoError(t, err)

	require.Len(t, sender.batches, 3)
	assert.Len(t, sender.batches[0], 500)
	assert.Len(t, sender.batches[1], 500)
	assert.Len(t, sender.batches[2], 200)
	for _, b := range sender.batches {
		for _, tok := range b {
			assert.NotContains(t, tok, "other-")
		}
	}
	assert.Equal(t, Result{Status: StatusCompleted, Recipients: 1200, Success: 1200}, res)

	require.Len(t, st.audits, 1)
	assert.Equal(t, int64(7), st.audits[0].TenantID)
	assert.Equal(t, StatusCompleted, st.audits[0].Status)
	assert.Equal(t, 1200, st.audits[0].SuccessCount)
}

func TestSendFailedBatchDoesNotAbortOthers(t *testing.T) {
	st := newFakeStore()
	st.tokens[7] = makeTokens("tok-", 1000)
	sender := &fakeSender{failBatches: map[int]bool{0: true}}
	svc := NewService(st, sender, nil)

	res, err := svc.Send(context.Background(), SendRequest{TenantID: 7, Title: "t", Body: "b"})
	require.NoError(t, err)
	require.Len(t, sender.batches, 2)
	assert.Equal(t, 500, res.Failure)
	assert.Equal(t, 500, res.Success)
	require.Len(t, st.audits, 1)
}

func TestSendDeactivatesInvalidTokensForTenant(t *testing.T) {
	st := newFakeStore()
	st.tokens[7] = []string{"good-1", "dead-1", "good-2", "dead-2"}
	svc := NewService(st, &fakeSender{}, nil)

	res, err := svc.Send(context.Background(), SendRequest{TenantID: 7, Title: "t", Body: "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 2, res.Failure)
	assert.Equal(t, 2, res.Invalid)
	assert.ElementsMatch(t, []string{"dead-1", "dead-2"}, st.deactivated[7])
	assert.Empty(t, st.deactivated[8])
}

func TestSendWithoutTokensIsSkippedAndAudited(t *testing.T) {
	st := newFakeStore()
	sender := &fakeSender{}
	svc := NewService(st, sender, nil)

	res, err := svc.Send(context.Background(), SendRequest{TenantID: 7, Title: "t", Body: "b", Target: "37"})
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Empty(t, sender.batches)
	require.Len(t, st.audits, 1)
	assert.Equal(t, StatusSkipped, st.audits[0].Status)
	require.Len(t, st.filters, 1)
	assert.Equal(t, "37", st.filters[0].Target)
}

func TestSendListFailureIsAudited(t *testing.T) {
	st := newFakeStore()
	st.listErr = errors.New("db down")
	sender := &fakeSender{}
	svc := NewService(st, sender, nil)

	_, err := svc.Send(context.Background(), SendRequest{TenantID: 7, Title: "t", Body: "b", Source: SourceAdmin})
	require.ErrorIs(t, err, st.listErr)

	assert.Empty(t, sender.batches)
	require.Len(t, st.audits, 1)
	assert.Equal(t, StatusFailed, st.audits[0].Status)
	assert.Equal(t, int64(7), st.audits[0].TenantID)
	assert.Equal(t, SourceAdmin, st.audits[0].Source)
}

func TestSendAuditFailureIsNotReturned(t *testing.T) {
	st := newFakeStore()
	st.tokens[7] = []string{"a"}
	st.auditErr = errors.New("db down")
	svc := NewService(st, &fakeSender{}, nil)

	res, err := svc.Send(context.Background(), SendRequest{TenantID: 7, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
}

func TestSendPassesSegmentFilter(t *testing.T) {
	st := newFakeStore()
	svc := NewService(st, &fakeSender{}, nil)

	_, err := svc.Send(context.Background(), SendRequest{
		TenantID: 7, Title: "t", Body: "b",
		Segment: "active", Tags: SplitTags(" vip, ,fibra "), Search: "maria",
	})
	require.NoError(t, err)
	require.Len(t, st.filters, 1)
	assert.Equal(t, store.TokenFilter{Segment: "active", Tags: []string{"vip", "fibra"}, Search: "maria"}, st.filters[0])
}

func TestDisabledSenderCountsFailures(t *testing.T) {
	st := newFakeStore()
	st.tokens[7] = []string{"a", "b"}
	svc := NewService(st, nil, nil)

	res, err := svc.Send(context.Background(), SendRequest{TenantID: 7, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failure)
	assert.Equal(t, 0, res.Success)
}

func TestIsInvalidTokenText(t *testing.T) {
	assert.True(t, IsInvalidTokenText("Requested entity was not found: registration token is not registered"))
	assert.True(t, IsInvalidTokenText("INVALID_ARGUMENT"))
	assert.False(t, IsInvalidTokenText("internal server error"))
}
