package push

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrMissingIdentifier = errors.New("identificador obrigatório (idcontrato, contract_id, customer_id, cpf ou cpf_cnpj); notificação não enviada para todos")
	ErrMessageRequired   = errors.New("mensagem obrigatória (message_body, mensagem ou msg)")
	ErrGatewayErrorLeak  = errors.New("mensagem contém stacktrace de erro do SGP")
	ErrInvalidProviderID = errors.New("provider_id inválido, deve ser um número")
	ErrProviderMismatch  = errors.New("provider_id não corresponde ao provedor do token")
)

// IdentifierHint tells operators how to pass the contract from the billing system.
const IdentifierHint = `No SGP, use a variável {idcontrato}. Ex.: "Contrato: {idcontrato}" na mensagem ou envie idcontrato={idcontrato} na URL/JSON.`

const (
	defaultWebhookTitle = "Nova Mensagem"
	defaultWebhookType  = "info"
	gatewayErrorMarker  = "HTTPSConnectionPool"
)

var contractInMessage = regexp.MustCompile(`(?i)Contrato:\s*(\d+)`)

// WebhookPayload is the notification request extracted from a billing
// system trigger.
type WebhookPayload struct {
	Title      string
	Message    string
	CustomerID string
	ContractID string
	Link       string
	Type       string
	ProviderID string
}

// Identifier is the value used to target devices: the customer id or
// document when present, else the contract.
func (p WebhookPayload) Identifier() string {
	if p.CustomerID != "" {
		return p.CustomerID
	}
	return p.ContractID
}

// ParseWebhook reads a merged query/body field set. Values under a nested
// "data" object win over flat ones.
func ParseWebhook(fields map[string]any) WebhookPayload {
	nested, _ := fields["data"].(map[string]any)
	pick := func(keys ...string) string {
		for _, src := range []map[string]any{nested, fields} {
			for _, k := range keys {
				if v := FieldString(src[k]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	p := WebhookPayload{
		Title:      pick("message_title", "title", "titulo"),
		Message:    pick("message_body", "message", "mensagem", "msg"),
		CustomerID: pick("customer_id", "customerId", "cpf", "cpf_cnpj"),
		ContractID: pick("contract_id", "contrato_id", "contratoId", "idcontrato"),
		Link:       pick("link", "url"),
		Type:       pick("type", "tipo"),
		ProviderID: pick("provider_id"),
	}
	if p.Title == "" {
		p.Title = defaultWebhookTitle
	}
	if p.Type == "" {
		p.Type = defaultWebhookType
	}
	if p.ContractID == "" && p.Message != "" {
		if m := contractInMessage.FindStringSubmatch(p.Message); m != nil {
			p.ContractID = m[1]
		}
	}
	return p
}

// Validate applies the guardrails in order: leaked gateway errors are
// cleaned or rejected, a target identifier is mandatory, and so is a
// message. The cleaned payload is returned.
func (p WebhookPayload) Validate() (WebhookPayload, error) {
	msg, err := CleanMessage(p.Message)
	if err != nil {
		return p, err
	}
	p.Message = msg
	if p.Identifier() == "" {
		return p, ErrMissingIdentifier
	}
	if strings.TrimSpace(p.Message) == "" {
		return p, ErrMessageRequired
	}
	return p, nil
}

// CheckProvider verifies an optional provider_id against the tenant that
// owns the webhook token.
func (p WebhookPayload) CheckProvider(tenantID int64) error {
	if p.ProviderID == "" {
		return nil
	}
	id, err := strconv.ParseInt(p.ProviderID, 10, 64)
	if err != nil {
		return ErrInvalidProviderID
	}
	if id != tenantID {
		return fmt.Errorf("%w: %d != %d", ErrProviderMismatch, id, tenantID)
	}
	return nil
}

// SendRequest targets the payload at the tenant's devices for its identifier.
func (p WebhookPayload) SendRequest(tenantID int64) SendRequest {
	return SendRequest{
		TenantID: tenantID,
		Title:    p.Title,
		Body:     p.Message,
		Source:   SourceWebhook,
		Target:   p.Identifier(),
		Data: map[string]string{
			"type":         p.Type,
			"url":          p.Link,
			"click_action": p.Link,
		},
	}
}

// CleanMessage handles billing systems that forward their own SMS gateway
// error instead of the message. The real text is recovered from the msg=
// query value when it is there; otherwise the message is rejected.
func CleanMessage(msg string) (string, error) {
	if !strings.Contains(msg, gatewayErrorMarker) {
		return msg, nil
	}
	i := strings.Index(msg, "msg=")
	if i < 0 {
		return "", ErrGatewayErrorLeak
	}
	raw := msg[i+len("msg="):]
	if j := strings.IndexByte(raw, '&'); j >= 0 {
		raw = raw[:j]
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayErrorLeak, err)
	}
	return decoded, nil
}

// FieldString renders a decoded webhook value as trimmed text. JSON numbers
// arrive as json.Number or float64.
func FieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	case []string:
		if len(t) > 0 {
			return strings.TrimSpace(t[0])
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
