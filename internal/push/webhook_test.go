package push

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFields(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestParseWebhookNestedWinsOverFlat(t *testing.T) {
	p := ParseWebhook(decodeFields(t, `{
		"title": "flat",
		"msg": "flat body",
		"data": {"message_title": "Fatura disponível", "mensagem": "Sua fatura venceu", "idcontrato": 37, "url": "https://app"}
	}`))

	assert.Equal(t, "Fatura disponível", p.Title)
	assert.Equal(t, "Sua fatura venceu", p.Message)
	assert.Equal(t, "37", p.ContractID)
	assert.Equal(t, "37", p.Identifier())
	assert.Equal(t, "https://app", p.Link)
	assert.Equal(t, "info", p.Type)
}

func TestParseWebhookDefaultsAndCustomerPrecedence(t *testing.T) {
	p := ParseWebhook(map[string]any{"message": "Olá", "cpf_cnpj": "123", "contract_id": "9", "tipo": "financeiro"})

	assert.Equal(t, "Nova Mensagem", p.Title)
	assert.Equal(t, "123", p.Identifier())
	assert.Equal(t, "financeiro", p.Type)
}

func TestParseWebhookContractFromMessage(t *testing.T) {
	p := ParseWebhook(map[string]any{"message_body": "Aviso de corte. contrato: 4521"})
	assert.Equal(t, "4521", p.ContractID)
}

func TestValidateRefusesBroadcast(t *testing.T) {
	for _, raw := range []string{
		`{"message": "Olá a todos"}`,
		`{"data": {"message": "Olá"}, "title": "x"}`,
		`{}`,
	} {
		_, err := ParseWebhook(decodeFields(t, raw)).Validate()
		assert.ErrorIs(t, err, ErrMissingIdentifier, raw)
	}
}

func TestValidateRequiresMessage(t *testing.T) {
	_, err := ParseWebhook(map[string]any{"idcontrato": "5"}).Validate()
	assert.ErrorIs(t, err, ErrMessageRequired)
}

func TestCleanMessageRecoversGatewayText(t *testing.T) {
	leaked := "HTTPSConnectionPool(host='sms.gw', port=443): Max retries exceeded with url: /send?to=55&msg=Ol%C3%A1+Maria%2C+fatura+paga&key=x"
	msg, err := CleanMessage(leaked)
	require.NoError(t, err)
	assert.Equal(t, "Olá Maria, fatura paga", msg)

	_, err = CleanMessage("HTTPSConnectionPool(host='sms.gw', port=443): Read timed out.")
	assert.ErrorIs(t, err, ErrGatewayErrorLeak)

	msg, err = CleanMessage("mensagem normal")
	require.NoError(t, err)
	assert.Equal(t, "mensagem normal", msg)
}

func TestValidateRejectsLeakBeforeIdentifierCheck(t *testing.T) {
	_, err := ParseWebhook(map[string]any{"msg": "HTTPSConnectionPool error", "idcontrato": "1"}).Validate()
	assert.ErrorIs(t, err, ErrGatewayErrorLeak)
}

func TestCheckProvider(t *testing.T) {
	assert.NoError(t, WebhookPayload{}.CheckProvider(3))
	assert.NoError(t, WebhookPayload{ProviderID: "3"}.CheckProvider(3))
	assert.ErrorIs(t, WebhookPayload{ProviderID: "4"}.CheckProvider(3), ErrProviderMismatch)
	assert.ErrorIs(t, WebhookPayload{ProviderID: "abc"}.CheckProvider(3), ErrInvalidProviderID)
}

func TestWebhookSendRequestTargetsIdentifier(t *testing.T) {
	p, err := ParseWebhook(map[string]any{"msg": "Pago", "contratoId": "88", "link": "https://x"}).Validate()
	require.NoError(t, err)

	req := p.SendRequest(3)
	assert.Equal(t, int64(3), req.TenantID)
	assert.Equal(t, "88", req.Target)
	assert.Equal(t, SourceWebhook, req.Source)
	assert.Equal(t, "https://x", req.Data["click_action"])
}
