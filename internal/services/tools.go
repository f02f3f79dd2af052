package services

import (
	"context"
	"encoding/json"
	"strings"

	"isp-agent-service/internal/genieacs"
	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/metrics"
)

const (
	ToolOpenTicket       = "open_ticket"
	ToolConnectionStatus = "check_connection_status"
	ToolTrustUnlock      = "grant_trust_unlock"
	ToolGetWifi          = "get_wifi_config"
	ToolSetWifi          = "set_wifi_config"
)

const (
	emptyToolResult   = "Nenhum registro encontrado no sistema."
	unknownToolResult = `{"error":"Ferramenta desconhecida"}`
	invalidArgsResult = `{"error":"invalid_args"}`
)

// toolHandler runs one tool for a turn. Handlers report failures as text
// for the model and never return errors.
type toolHandler func(ctx context.Context, tc *TurnContext, args json.RawMessage) string

type Toolbox struct {
	Billing Billing
	Wifi    *WifiService
	Logger  logging.Logger

	handlers map[string]toolHandler
}

func NewToolbox(billing Billing, wifi *WifiService, logger logging.Logger) *Toolbox {
	t := &Toolbox{Billing: billing, Wifi: wifi, Logger: logging.OrDiscard(logger)}
	t.handlers = map[string]toolHandler{
		ToolOpenTicket:       t.openTicket,
		ToolConnectionStatus: t.connectionStatus,
		ToolTrustUnlock:      t.trustUnlock,
		ToolGetWifi:          t.getWifi,
		ToolSetWifi:          t.setWifi,
	}
	return t
}

// Definitions declares the tools to the model.
func (t *Toolbox) Definitions() []OpenAITool {
	noArgs := map[string]any{"type": "object", "properties": map[string]any{}}
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	return []OpenAITool{
		{
			Name:        ToolOpenTicket,
			Description: "Abre um chamado técnico no SGP. Use apenas quando as dicas básicas não resolverem ou houver falha clara de rede.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"reason": str("Motivo técnico do chamado.")},
				"required":   []string{"reason"},
			},
		},
		{
			Name:        ToolConnectionStatus,
			Description: "Verifica o status atual do contrato e da conexão do cliente no SGP (ONLINE, OFFLINE, SUSPENSO).",
			Parameters:  noArgs,
		},
		{
			Name:        ToolTrustUnlock,
			Description: "Realiza o desbloqueio em confiança (liberação temporária) do contrato do cliente.",
			Parameters:  noArgs,
		},
		{
			Name:        ToolGetWifi,
			Description: "Consulta nome (SSID) e senha das redes Wi-Fi 2.4GHz e 5GHz cadastradas no modem do cliente.",
			Parameters:  noArgs,
		},
		{
			Name:        ToolSetWifi,
			Description: "Altera nome e/ou senha das redes Wi-Fi do modem. Envie apenas os campos que o cliente quer mudar.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ssid_2g":     str("Novo nome da rede 2.4GHz."),
					"password_2g": str("Nova senha da rede 2.4GHz."),
					"ssid_5g":     str("Novo nome da rede 5GHz."),
					"password_5g": str("Nova senha da rede 5GHz."),
				},
			},
		},
	}
}

// Dispatch runs the named tool. Unknown names and empty results are
// reported to the model as data.
func (t *Toolbox) Dispatch(ctx context.Context, tc *TurnContext, name, args string) string {
	h, ok := t.handlers[name]
	if !ok {
		metrics.ToolCalls.WithLabelValues("unknown", "rejected").Inc()
		t.Logger.WithField("tool", name).Warn("model requested unknown tool")
		return unknownToolResult
	}
	raw := json.RawMessage(strings.TrimSpace(args))
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if !json.Valid(raw) {
		metrics.ToolCalls.WithLabelValues(name, "invalid_args").Inc()
		return invalidArgsResult
	}
	out := h(ctx, tc, raw)
	metrics.ToolCalls.WithLabelValues(name, "ok").Inc()
	return normalizeToolResult(out)
}

func normalizeToolResult(s string) string {
	switch strings.TrimSpace(s) {
	case "", "null", "[]", "{}":
		return emptyToolResult
	}
	return s
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (t *Toolbox) openTicket(ctx context.Context, tc *TurnContext, args json.RawMessage) string {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return invalidArgsResult
	}
	contract := tc.ResolveContract()
	if contract == "" {
		return "Não consegui identificar seu contrato para abrir o chamado automaticamente."
	}
	res := t.Billing.AbrirChamado(ctx, tc.Tenant, contract, in.Reason)
	if res == nil {
		return "Falha ao abrir o chamado: o sistema do provedor não respondeu."
	}
	t.Logger.WithFields(logging.Fields{"tenant_id": tc.Tenant.ID, "contract": contract}).Info("ticket opened")
	return toJSON(res)
}

func (t *Toolbox) connectionStatus(ctx context.Context, tc *TurnContext, _ json.RawMessage) string {
	if tc.ContractID == "" {
		return "Contrato não localizado para verificar status."
	}
	res := t.Billing.VerificaAcesso(ctx, tc.Tenant, tc.CPF, tc.ContractID)
	if res == nil {
		return "Não foi possível consultar o status da conexão no momento."
	}
	return toJSON(res)
}

func (t *Toolbox) trustUnlock(ctx context.Context, tc *TurnContext, _ json.RawMessage) string {
	contract := tc.ResolveContract()
	if contract == "" {
		return "Contrato não localizado para realizar a liberação."
	}
	res := t.Billing.LiberacaoPromessa(ctx, tc.Tenant, tc.CPF, contract)
	if res == nil {
		return "Falha ao realizar a liberação: o sistema do provedor não respondeu."
	}
	t.Logger.WithFields(logging.Fields{"tenant_id": tc.Tenant.ID, "contract": contract}).Info("trust unlock requested")
	return toJSON(res)
}

func (t *Toolbox) getWifi(ctx context.Context, tc *TurnContext, _ json.RawMessage) string {
	if t.Wifi == nil {
		return "O gerenciamento remoto de modems não está disponível."
	}
	res, err := t.Wifi.Read(ctx, tc.Tenant, &tc.Customer)
	if err != nil {
		return "Não consegui ler as configurações do Wi-Fi. " + describeWifiError(err)
	}
	if res.Cached {
		return toJSON(map[string]any{
			"aviso":       "Modem inacessível agora; esta é a última configuração conhecida.",
			"ssid_2g":     res.Config.SSID2G,
			"password_2g": res.Config.Password2G,
			"ssid_5g":     res.Config.SSID5G,
			"password_5g": res.Config.Password5G,
		})
	}
	return toJSON(res.Config)
}

func (t *Toolbox) setWifi(ctx context.Context, tc *TurnContext, args json.RawMessage) string {
	if t.Wifi == nil {
		return "O gerenciamento remoto de modems não está disponível."
	}
	var u genieacs.WifiUpdate
	if err := json.Unmarshal(args, &u); err != nil {
		return invalidArgsResult
	}
	u.SSID2G = strings.TrimSpace(u.SSID2G)
	u.SSID5G = strings.TrimSpace(u.SSID5G)
	if err := t.Wifi.Update(ctx, tc.Tenant, &tc.Customer, u); err != nil {
		return "Falha ao alterar configuração no modem. " + describeWifiError(err)
	}
	return "Configuração enviada com sucesso! O modem deve reiniciar a rede Wi-Fi em alguns instantes."
}
