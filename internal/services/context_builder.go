package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"isp-agent-service/internal/invoice"
	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/sgp"
)

// Billing is the subset of the SGP client the assistant uses.
type Billing interface {
	ConsultaCliente(ctx context.Context, tenant models.Tenant, cpf string) *sgp.ClientProfile
	Titulos(ctx context.Context, tenant models.Tenant, cpf string) []map[string]any
	SegundaVia(ctx context.Context, tenant models.Tenant, cpf string) []map[string]any
	VerificaAcesso(ctx context.Context, tenant models.Tenant, cpf, contract string) map[string]any
	LiberacaoPromessa(ctx context.Context, tenant models.Tenant, cpf, contract string) map[string]any
	AbrirChamado(ctx context.Context, tenant models.Tenant, contract, reason string) map[string]any
}

type ContextStore interface {
	UpdatePPPoELogin(ctx context.Context, customerID int64, login string) error
	InsertTelemetry(ctx context.Context, t models.TelemetrySample) error
	LatestTelemetry(ctx context.Context, customerID int64) (models.TelemetrySample, error)
}

// TurnContext is the per-message state shared by the prompt and every tool
// handler. It is built once per inbound message and never shared.
type TurnContext struct {
	Tenant   models.Tenant
	Customer models.Customer
	CPF      string

	Profile    *sgp.ClientProfile
	Finance    invoice.Buckets
	Access     map[string]any
	ContractID string
	ServiceID  string

	// FinanceLoaded is false when the titles feed was unavailable.
	FinanceLoaded bool

	Summary           string
	Telemetry         string
	TelemetryAnalyzed bool
}

var contractInSummary = regexp.MustCompile(`(?i)contrato: (\d+)`)

// ResolveContract walks the contract fallback chain: resolved contract,
// finance records, the context summary, then the raw profile.
func (t *TurnContext) ResolveContract() string {
	if t.ContractID != "" {
		return t.ContractID
	}
	if c := t.Finance.FirstContract(); c != "" {
		return c
	}
	if m := contractInSummary.FindStringSubmatch(t.Summary); m != nil {
		return m[1]
	}
	return t.Profile.FirstContractID()
}

type ContextBuilder struct {
	Billing Billing
	Store   ContextStore
	Logger  logging.Logger
}

const noTelemetry = "Nenhuma telemetria disponível."

// Build gathers profile, finance, access and telemetry for one turn.
// Upstream gaps degrade to "unavailable" text; Build never fails.
func (b *ContextBuilder) Build(ctx context.Context, tenant models.Tenant, customer models.Customer, inline *models.InlineTelemetry, today time.Time) *TurnContext {
	log := logging.OrDiscard(b.Logger)
	tc := &TurnContext{Tenant: tenant, Customer: customer, CPF: customer.CPF}

	tc.Telemetry, tc.TelemetryAnalyzed = b.telemetry(ctx, tenant, customer, inline)

	profileText := "Não disponível"
	if p := b.Billing.ConsultaCliente(ctx, tenant, customer.CPF); p != nil {
		tc.Profile = p
		if raw, err := json.Marshal(p.Raw); err == nil {
			profileText = string(raw)
		}
		if login := p.PPPoELogin(); login != "" && login != customer.PPPoELogin {
			if err := b.Store.UpdatePPPoELogin(ctx, customer.ID, login); err != nil {
				log.WithError(err).WithField("customer_id", customer.ID).Warn("failed to sync pppoe login")
			} else {
				tc.Customer.PPPoELogin = login
			}
		}
		tc.ContractID = p.FirstContractID()
	}

	financeText := "Dados financeiros não disponíveis."
	titles := b.Billing.Titulos(ctx, tenant, customer.CPF)
	if titles != nil {
		tc.Finance = invoice.Select(titles, b.Billing.SegundaVia(ctx, tenant, customer.CPF), today)
		tc.FinanceLoaded = true
		financeText = tc.Finance.Summary()
		if tc.ContractID == "" {
			tc.ContractID = tc.Finance.FirstContract()
		}
	}

	accessText := "Status de acesso não disponível."
	if tc.ContractID != "" {
		if access := b.Billing.VerificaAcesso(ctx, tenant, customer.CPF, tc.ContractID); access != nil {
			tc.Access = access
			if raw, err := json.Marshal(access); err == nil {
				accessText = string(raw)
			}
			tc.ServiceID = sgp.String(access["servico_id"])
		}
	}

	tc.Summary = fmt.Sprintf(
		"Nome do Cliente: %s, CPF: %s, Provedor: %s, Contrato Atual: %s, Serviço ID: %s, Dados SGP: %s, Financeiro: %s, Status de Acesso: %s",
		tc.Customer.Name, customer.CPF, tenant.Name, orNone(tc.ContractID), orNone(tc.ServiceID), profileText, financeText, accessText)

	log.WithFields(logging.Fields{
		"tenant_id":   tenant.ID,
		"customer_id": customer.ID,
		"contract":    tc.ContractID,
		"selected":    tc.Finance.Selected != nil,
		"telemetry":   tc.TelemetryAnalyzed,
	}).Debug("built turn context")
	return tc
}

func (b *ContextBuilder) telemetry(ctx context.Context, tenant models.Tenant, customer models.Customer, inline *models.InlineTelemetry) (string, bool) {
	if inline != nil {
		sample := models.TelemetrySample{
			TenantID:    tenant.ID,
			CustomerID:  customer.ID,
			SSID:        inline.SSID,
			WifiDBM:     inline.Signal(),
			IP:          inline.IP,
			BSSID:       inline.BSSID,
			NetworkType: inline.Connectivity,
		}
		if err := b.Store.InsertTelemetry(ctx, sample); err != nil {
			logging.OrDiscard(b.Logger).WithError(err).Warn("failed to persist inline telemetry")
		}
		return fmt.Sprintf("SSID: %s, Sinal: %s dBm, IP: %s, BSSID: %s",
			orNA(inline.SSID), intOrNA(inline.Signal()), orNA(inline.IP), orNA(inline.BSSID)), true
	}

	last, err := b.Store.LatestTelemetry(ctx, customer.ID)
	if err != nil {
		return noTelemetry, false
	}
	return fmt.Sprintf("SSID: %s, Sinal: %s dBm, Banda: %s, Velocidade do link: %s Mbps, Latência: %s ms, Jitter: %s ms, Perda de pacotes: %s%%, Tipo: %s (coletado em %s)",
		orNA(last.SSID), intOrNA(last.WifiDBM), orNA(last.Band), intOrNA(last.LinkSpeed),
		floatOrNA(last.Latency), floatOrNA(last.Jitter), floatOrNA(last.PacketLoss),
		orNA(last.NetworkType), last.CreatedAt.Format("02/01/2006 15:04")), true
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func intOrNA(v *int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *v)
}

func floatOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *v)
}
