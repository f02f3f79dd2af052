package sgp

import (
	"context"
	"net/url"
	"strings"

	"isp-agent-service/internal/models"
)

const (
	EndpointConsultaCliente   = "api/ura/consultacliente/"
	EndpointTitulos           = "api/ura/titulos/"
	EndpointSegundaVia        = "api/ura/fatura2via/"
	EndpointVerificaAcesso    = "api/ura/verificaacesso/"
	EndpointLiberacaoPromessa = "api/ura/liberacaopromessa/"
	EndpointChamado           = "api/ura/chamado/"
)

// Contract is the subset of a profile contract the assistant needs.
type Contract struct {
	ID    string
	Login string
}

// ClientProfile wraps the consultacliente payload.
type ClientProfile struct {
	Raw       map[string]any
	Login     string
	Contracts []Contract
}

// PPPoELogin returns the top-level login, else the first contract login.
func (p *ClientProfile) PPPoELogin() string {
	if p == nil {
		return ""
	}
	if p.Login != "" {
		return p.Login
	}
	for _, c := range p.Contracts {
		if c.Login != "" {
			return c.Login
		}
	}
	return ""
}

func (p *ClientProfile) FirstContractID() string {
	if p == nil || len(p.Contracts) == 0 {
		return ""
	}
	return p.Contracts[0].ID
}

func (c *Client) ConsultaCliente(ctx context.Context, tenant models.Tenant, cpf string) *ClientProfile {
	raw := c.Call(ctx, tenant, cpf, EndpointConsultaCliente, nil, "POST")
	if raw == nil {
		return nil
	}
	p := &ClientProfile{Raw: raw}
	p.Login = firstString(raw, "login", "pppoe_login")
	if list, ok := raw["contratos"].([]any); ok {
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			p.Contracts = append(p.Contracts, Contract{
				ID:    firstString(m, "contratoId", "contrato_id", "id"),
				Login: firstString(m, "login", "pppoe_login"),
			})
		}
	}
	return p
}

// Titulos returns the generic invoice feed, nil when unavailable.
func (c *Client) Titulos(ctx context.Context, tenant models.Tenant, cpf string) []map[string]any {
	return records(c.Call(ctx, tenant, cpf, EndpointTitulos, nil, "POST"), "titulos")
}

// SegundaVia returns the second-copy invoice feed.
func (c *Client) SegundaVia(ctx context.Context, tenant models.Tenant, cpf string) []map[string]any {
	return records(c.Call(ctx, tenant, cpf, EndpointSegundaVia, nil, "POST"), "links")
}

func (c *Client) VerificaAcesso(ctx context.Context, tenant models.Tenant, cpf, contract string) map[string]any {
	return c.Call(ctx, tenant, cpf, EndpointVerificaAcesso, map[string]string{"contrato": contract}, "POST")
}

func (c *Client) LiberacaoPromessa(ctx context.Context, tenant models.Tenant, cpf, contract string) map[string]any {
	return c.Call(ctx, tenant, cpf, EndpointLiberacaoPromessa, map[string]string{
		"contrato": contract,
		"conteudo": "Solicitação de Desbloqueio via Assistente IA",
	}, "POST")
}

// AbrirChamado opens a support ticket on a contract. The ticket endpoint is
// keyed by contract only, so no cpfcnpj is sent.
func (c *Client) AbrirChamado(ctx context.Context, tenant models.Tenant, contract, reason string) map[string]any {
	form := url.Values{}
	form.Set("contrato", contract)
	form.Set("ocorrenciatipo", "1")
	form.Set("conteudo", "Abertura automática via Assistente IA.\nMotivo: "+strings.TrimSpace(reason))
	form.Set("conteudolimpo", "1")
	form.Set("token", tenant.SGPToken)
	form.Set("app", appName(tenant))
	return c.do(ctx, tenant, EndpointChamado, form, "POST")
}

func records(raw map[string]any, key string) []map[string]any {
	if raw == nil {
		return nil
	}
	list, ok := raw[key].([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// firstString returns the first non-empty key, stringifying numbers.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := String(m[k]); s != "" {
			return s
		}
	}
	return ""
}
