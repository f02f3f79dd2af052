package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isp-agent-service/internal/genieacs"
	"isp-agent-service/internal/invoice"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/sgp"
)

func TestToolboxDeclaresClosedToolSet(t *testing.T) {
	tb := NewToolbox(&fakeBilling{}, nil, nil)
	var names []string
	for _, d := range tb.Definitions() {
		names = append(names, d.Name)
		assert.Equal(t, "object", d.Parameters["type"])
	}
	assert.ElementsMatch(t, []string{ToolOpenTicket, ToolConnectionStatus, ToolTrustUnlock, ToolGetWifi, ToolSetWifi}, names)
	assert.Len(t, tb.handlers, len(names))
}

func TestDispatchReportsProblemsAsData(t *testing.T) {
	billing := &fakeBilling{access: map[string]any{}}
	tb := NewToolbox(billing, nil, nil)
	tc := &TurnContext{ContractID: "555"}

	assert.Equal(t, unknownToolResult, tb.Dispatch(context.Background(), tc, "rm_rf", "{}"))
	assert.Equal(t, invalidArgsResult, tb.Dispatch(context.Background(), tc, ToolOpenTicket, "{not json"))
	assert.Equal(t, emptyToolResult, tb.Dispatch(context.Background(), tc, ToolConnectionStatus, ""))
	assert.Contains(t, tb.Dispatch(context.Background(), tc, ToolGetWifi, ""), "não está disponível")
}

func TestSideEffectToolsSurfaceMissingAcknowledgement(t *testing.T) {
	billing := &fakeBilling{}
	tb := NewToolbox(billing, nil, nil)
	tc := &TurnContext{ContractID: "555"}

	assert.Contains(t, tb.Dispatch(context.Background(), tc, ToolTrustUnlock, "{}"), "Falha ao realizar a liberação")
	assert.Contains(t, tb.Dispatch(context.Background(), tc, ToolOpenTicket, `{"reason":"LED vermelho"}`), "Falha ao abrir o chamado")
	assert.Equal(t, "LED vermelho", billing.ticketReason)
}

func TestToolsWithoutContract(t *testing.T) {
	billing := &fakeBilling{}
	tb := NewToolbox(billing, nil, nil)
	tc := &TurnContext{}

	assert.Equal(t, "Contrato não localizado para verificar status.", tb.Dispatch(context.Background(), tc, ToolConnectionStatus, "{}"))
	assert.Equal(t, "Contrato não localizado para realizar a liberação.", tb.Dispatch(context.Background(), tc, ToolTrustUnlock, "{}"))
	assert.Contains(t, tb.Dispatch(context.Background(), tc, ToolOpenTicket, `{"reason":"x"}`), "Não consegui identificar seu contrato")
	assert.Empty(t, billing.calls)
}

func TestResolveContractFallbackChain(t *testing.T) {
	tc := &TurnContext{
		Profile: &sgp.ClientProfile{Contracts: []sgp.Contract{{ID: "300"}}},
	}
	assert.Equal(t, "300", tc.ResolveContract())

	tc.Summary = "Dados SGP: {\"obs\":\"contrato: 200\"}"
	assert.Equal(t, "200", tc.ResolveContract())

	tc.Finance = invoice.Select([]map[string]any{{"id": "1", "status": "Pago", "dataVencimento": "2026-01-01", "clienteContrato": "100"}}, nil, chatToday)
	assert.Equal(t, "100", tc.ResolveContract())

	tc.ContractID = "50"
	assert.Equal(t, "50", tc.ResolveContract())
}

func TestSetWifiToolUpdatesTurnCustomer(t *testing.T) {
	st, acs, svc, stored := wifiFixture()
	tb := NewToolbox(&fakeBilling{}, svc, nil)
	tc := &TurnContext{Tenant: models.Tenant{ID: 7}, Customer: *stored}

	out := tb.Dispatch(context.Background(), tc, ToolSetWifi, `{"password_5g":"NovaSenha@5"}`)
	assert.Contains(t, out, "Configuração enviada com sucesso")
	assert.Equal(t, []genieacs.WifiUpdate{{Password5G: "NovaSenha@5"}}, acs.updates)
	assert.Equal(t, "NovaSenha@5", tc.Customer.WifiPassword5G)
	assert.Equal(t, "Casa", tc.Customer.WifiSSID2G)
	assert.Equal(t, "NovaSenha@5", st.customers[stored.ID].WifiPassword5G)

	acs.readErr = &genieacs.Error{Kind: genieacs.KindHTTP, StatusCode: 500, Message: "boom"}
	read := tb.Dispatch(context.Background(), tc, ToolGetWifi, "{}")
	assert.Contains(t, read, "última configuração conhecida")
	assert.Contains(t, read, "NovaSenha@5")
}

func TestContextBuilder(t *testing.T) {
	st := newFakeStore()
	cust := st.addCustomer(models.Customer{TenantID: 7, CPF: "12345678900", Name: "Maria", PPPoELogin: "old@isp"})
	billing := &fakeBilling{
		profile: &sgp.ClientProfile{Raw: map[string]any{"nome": "Maria"}, Login: "maria@isp"},
		titles:  []map[string]any{overdueInvoice()},
		access:  map[string]any{"status": "SUSPENSO", "servico_id": 31},
	}
	billing.titles[0]["clienteContrato"] = "777"
	b := &ContextBuilder{Billing: billing, Store: st}
	tenant := models.Tenant{ID: 7, Name: "FibraNet", SGPToken: "secret", GenieACSPassword: "acs-secret"}

	signal := -72
	tc := b.Build(context.Background(), tenant, *cust, &models.InlineTelemetry{SSID: "Casa", SignalStrength: &signal, IP: "192.168.0.10"}, chatToday)

	assert.Equal(t, "maria@isp", st.customers[cust.ID].PPPoELogin)
	assert.Equal(t, "777", tc.ContractID, "contract falls back to the finance records")
	assert.Equal(t, "31", tc.ServiceID)
	require.NotNil(t, tc.Finance.Selected)
	assert.True(t, tc.FinanceLoaded)
	assert.True(t, tc.TelemetryAnalyzed)
	assert.Equal(t, "SSID: Casa, Sinal: -72 dBm, IP: 192.168.0.10, BSSID: N/A", tc.Telemetry)
	require.Len(t, st.samples, 1)
	assert.Contains(t, billing.calls, "verificaacesso:777")

	assert.Contains(t, tc.Summary, "Contrato Atual: 777")
	assert.Contains(t, tc.Summary, "Serviço ID: 31")
	assert.NotContains(t, tc.Summary, "secret")

	again := b.Build(context.Background(), tenant, *cust, nil, chatToday)
	assert.Contains(t, again.Telemetry, "SSID: Casa, Sinal: -72 dBm, Banda: N/A")
}

func TestContextBuilderDegradesWhenUpstreamIsDown(t *testing.T) {
	st := newFakeStore()
	cust := st.addCustomer(models.Customer{TenantID: 7, CPF: "1", Name: "Maria"})
	b := &ContextBuilder{Billing: &fakeBilling{}, Store: st}

	tc := b.Build(context.Background(), models.Tenant{ID: 7, Name: "FibraNet"}, *cust, nil, time.Now())
	assert.False(t, tc.FinanceLoaded)
	assert.False(t, tc.TelemetryAnalyzed)
	assert.Equal(t, noTelemetry, tc.Telemetry)
	assert.Contains(t, tc.Summary, "Dados financeiros não disponíveis.")
	assert.Contains(t, tc.Summary, "Status de acesso não disponível.")
	assert.Contains(t, tc.Summary, "Contrato Atual: None")
}
