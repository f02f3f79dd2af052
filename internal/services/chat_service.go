package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/metrics"
	"isp-agent-service/internal/models"
)

const fallbackReply = "Desculpe, não consegui processar sua solicitação no momento. Pode tentar de outra forma?"

type TenantStore interface {
	TenantByToken(ctx context.Context, token string) (models.Tenant, error)
}

type Store interface {
	ContextStore
	TenantStore
	CustomerByCPF(ctx context.Context, tenantID int64, cpf string) (models.Customer, error)
	CreateCustomer(ctx context.Context, tenantID int64, cpf, name string) (models.Customer, error)
	UpdateCustomerName(ctx context.Context, customerID int64, name string) error
	CreateSession(ctx context.Context, tenantID, customerID int64) (models.ChatSession, error)
	GetSession(ctx context.Context, customerID int64, sessionID string) (models.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID, role, content string, paymentDisclosed bool) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}

// RetryConfig bounds model retries on rate limiting.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type ChatService struct {
	Store    Store
	Model    ModelClient
	Settings *SettingsCatalog
	Context  *ContextBuilder
	Tools    *Toolbox
	Logger   logging.Logger

	MaxToolTurns int
	HistoryLimit int
	Retry        RetryConfig
	Now          func() time.Time
}

func (c *ChatService) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// NormalizeCPF keeps only the digits of a CPF/CNPJ.
func NormalizeCPF(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveTenant maps an app token to its tenant.
func ResolveTenant(ctx context.Context, s TenantStore, token string) (models.Tenant, error) {
	t, err := s.TenantByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Tenant{}, ErrTenantNotFound
		}
		return models.Tenant{}, fmt.Errorf("failed to resolve tenant: %w", err)
	}
	if !t.IsActive {
		return models.Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func isGenericName(name, cpf string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == "Cliente "+cpf || strings.EqualFold(name, "cliente")
}

func (c *ChatService) customer(ctx context.Context, tenant models.Tenant, cpf, name string) (models.Customer, error) {
	name = strings.TrimSpace(name)
	cust, err := c.Store.CustomerByCPF(ctx, tenant.ID, cpf)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if name == "" {
			name = "Cliente " + cpf
		}
		cust, err = c.Store.CreateCustomer(ctx, tenant.ID, cpf, name)
		if err != nil {
			return models.Customer{}, fmt.Errorf("failed to create customer: %w", err)
		}
		return cust, nil
	case err != nil:
		return models.Customer{}, fmt.Errorf("failed to load customer: %w", err)
	}
	if name != "" && isGenericName(cust.Name, cpf) && !isGenericName(name, cpf) {
		if err := c.Store.UpdateCustomerName(ctx, cust.ID, name); err == nil {
			cust.Name = name
		}
	}
	return cust, nil
}

func (c *ChatService) session(ctx context.Context, tenant models.Tenant, cust models.Customer, id string) (models.ChatSession, error) {
	if id = strings.TrimSpace(id); id != "" {
		s, err := c.Store.GetSession(ctx, cust.ID, id)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.ChatSession{}, fmt.Errorf("failed to load session: %w", err)
		}
	}
	s, err := c.Store.CreateSession(ctx, tenant.ID, cust.ID)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// buildHistory returns the prior turns and whether any earlier assistant
// turn already carried payment data.
func (c *ChatService) buildHistory(ctx context.Context, sessionID string) ([]OpenAIMessage, bool) {
	limit := c.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	msgs, err := c.Store.ListMessages(ctx, sessionID, limit)
	if err != nil {
		logging.OrDiscard(c.Logger).WithError(err).WithField("session_id", sessionID).Warn("failed to load history")
		return nil, false
	}
	disclosed := false
	out := make([]OpenAIMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		if m.PaymentDisclosed {
			disclosed = true
		}
		out = append(out, OpenAIMessage{Role: m.Role, Content: m.Content})
	}
	return out, disclosed
}

// Chat answers one customer message.
func (c *ChatService) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	return c.ChatStream(ctx, req, nil)
}

// ChatStream answers one customer message and hands each shaped message to
// onMessage, in order, before returning the full response.
func (c *ChatService) ChatStream(ctx context.Context, req models.ChatRequest, onMessage func(models.ReplyMessage)) (models.ChatResponse, error) {
	log := logging.OrDiscard(c.Logger)

	tenant, err := ResolveTenant(ctx, c.Store, req.ProviderToken)
	if err != nil {
		return models.ChatResponse{}, err
	}
	settings, err := c.Settings.Fetch(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load system settings, using fallback")
	}
	if strings.TrimSpace(settings.ModelAPIKey) == "" {
		return models.ChatResponse{}, ErrModelNotConfigured
	}

	cpf := NormalizeCPF(req.CPF)
	cust, err := c.customer(ctx, tenant, cpf, req.Name)
	if err != nil {
		return models.ChatResponse{}, err
	}

	sess, err := c.session(ctx, tenant, cust, req.SessionID)
	if err != nil {
		return models.ChatResponse{}, err
	}
	entry := log.WithFields(logging.Fields{"session_id": sess.ID, "tenant_id": tenant.ID})

	history, disclosedEarlier := c.buildHistory(ctx, sess.ID)
	if err := c.Store.AppendMessage(ctx, sess.ID, models.RoleUser, req.Message, false); err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to store message: %w", err)
	}

	tc := c.Context.Build(ctx, tenant, cust, req.Telemetry, c.now())
	system, custom := RenderSystemPrompt(settings.PromptTemplate, PromptData{
		Provider:         tenant.Name,
		ClientContext:    tc.Summary,
		TelemetryContext: tc.Telemetry,
	})
	if settings.PromptTemplate != "" && !custom {
		entry.Warn("stored prompt template is invalid, using built-in prompt")
	}

	msgs := make([]OpenAIMessage, 0, len(history)+2)
	msgs = append(msgs, OpenAIMessage{Role: "system", Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, OpenAIMessage{Role: models.RoleUser, Content: req.Message})

	text, err := c.chatWithToolLoop(ctx, settings, msgs, tc)
	if err != nil {
		return models.ChatResponse{}, err
	}

	disclose := ShouldDisclose(tc.Finance.Selected != nil, req.Message, disclosedEarlier)
	shaped := Shape(ShapeInput{
		Text:            text,
		Selected:        tc.Finance.Selected,
		Disclose:        disclose,
		NoInvoiceNotice: tc.FinanceLoaded && tc.Finance.Selected == nil && IsPaymentRequest(req.Message) && !IsClosing(req.Message),
	})

	if err := c.Store.AppendMessage(ctx, sess.ID, models.RoleAssistant, text, shaped.PaymentData != nil); err != nil {
		entry.WithError(err).Warn("failed to store assistant message")
	}

	for _, m := range shaped.Messages {
		if onMessage != nil {
			onMessage(m)
		}
	}

	return models.ChatResponse{
		SessionID:         sess.ID,
		Response:          text,
		Messages:          shaped.Messages,
		TelemetryAnalyzed: tc.TelemetryAnalyzed,
		PaymentData:       shaped.PaymentData,
		Action:            shaped.Action,
	}, nil
}

// chatWithToolLoop runs model turns until the model answers in text or
// MaxToolTurns tool rounds have run. Tool calls of one turn execute in
// order and their results are sent back together.
func (c *ChatService) chatWithToolLoop(ctx context.Context, settings models.SystemSettings, messages []OpenAIMessage, tc *TurnContext) (string, error) {
	log := logging.OrDiscard(c.Logger)
	maxTurns := c.MaxToolTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	tools := c.Tools.Definitions()

	msgs := make([]OpenAIMessage, 0, len(messages)+8)
	msgs = append(msgs, messages...)

	req := ModelRequest{APIKey: settings.ModelAPIKey, Model: settings.ModelName, Tools: tools}
	req.Messages = msgs
	assistantMsg, err := c.callModel(ctx, req)
	if err != nil {
		return "", err
	}

	for turn := 1; len(assistantMsg.ToolCalls) > 0; turn++ {
		if turn > maxTurns {
			log.WithField("turn", turn).Warn("tool turn limit reached")
			break
		}
		msgs = append(msgs, OpenAIMessage{Role: "assistant", Content: assistantMsg.Content, ToolCalls: assistantMsg.ToolCalls})
		for _, call := range assistantMsg.ToolCalls {
			log.WithFields(logging.Fields{"turn": turn, "tool": call.Name}).Debug("running tool")
			result := c.Tools.Dispatch(ctx, tc, call.Name, call.Arguments)
			msgs = append(msgs, OpenAIMessage{Role: "tool", ToolCallID: call.ID, Content: result})
		}
		req.Messages = msgs
		assistantMsg, err = c.callModel(ctx, req)
		if err != nil {
			return "", err
		}
	}

	text := strings.TrimSpace(assistantMsg.Content)
	if text == "" {
		text = fallbackReply
	}
	return text, nil
}

func (c *ChatService) retryPolicy() retrypolicy.RetryPolicy[OpenAIMessage] {
	cfg := c.Retry
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return retrypolicy.NewBuilder[OpenAIMessage]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxAttempts - 1).
		WithJitterFactor(0.25).
		HandleIf(func(_ OpenAIMessage, err error) bool {
			return errors.Is(err, ErrRateLimited)
		}).
		ReturnLastFailure().
		Build()
}

// callModel retries only rate-limited calls. Exhausted retries map to
// ErrModelBusy and any other failure to ErrModelUnavailable.
func (c *ChatService) callModel(ctx context.Context, req ModelRequest) (OpenAIMessage, error) {
	msg, err := failsafe.With(c.retryPolicy()).WithContext(ctx).Get(func() (OpenAIMessage, error) {
		m, err := c.Model.ChatWithTools(ctx, req)
		if errors.Is(err, ErrRateLimited) {
			metrics.ModelCalls.WithLabelValues("rate_limited").Inc()
			logging.OrDiscard(c.Logger).Warn("model rate limited, backing off")
		}
		return m, err
	})
	switch {
	case err == nil:
		metrics.ModelCalls.WithLabelValues("ok").Inc()
		return msg, nil
	case errors.Is(err, ErrRateLimited):
		return OpenAIMessage{}, fmt.Errorf("%w: %v", ErrModelBusy, err)
	default:
		metrics.ModelCalls.WithLabelValues("error").Inc()
		logging.OrDiscard(c.Logger).WithError(err).Error("model call failed")
		return OpenAIMessage{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
}
