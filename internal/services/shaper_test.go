package services

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isp-agent-service/internal/invoice"
	"isp-agent-service/internal/models"
)

func pendingInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		ID:      "42",
		Status:  invoice.StatusPending,
		DueDate: time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		Amount:  decimal.RequireFromString("120.5"),
		PixCode: pixCode,
		BarCode: "8369",
	}
}

func TestShapeInvoiceSequenceWinsOverText(t *testing.T) {
	out := Shape(ShapeInput{Text: "a ||| b", Selected: pendingInvoice(), Disclose: true})

	require.Len(t, out.Messages, 4)
	assert.Equal(t, "💳 Sua fatura em aberto:\n\nFatura ID: 42\nVencimento: 20/03/2026\nValor: R$ 120.50", out.Messages[0].Text)
	assert.Equal(t, "Segue seu QRcode PIX para pagamento.", out.Messages[1].Text)
	assert.Same(t, out.PaymentData, out.Messages[2].PaymentData)
	assert.Equal(t, closingQuestion, out.Messages[3].Text)
	assert.Equal(t, models.ActionSendInvoice, out.Action)
	assert.Equal(t, "8369", out.PaymentData.LinhaDigitavel)
}

func TestShapeSelectionWithoutDisclosureUsesText(t *testing.T) {
	out := Shape(ShapeInput{Text: "Olá!", Selected: pendingInvoice()})
	assert.Nil(t, out.PaymentData)
	assert.Equal(t, models.ActionNone, out.Action)
	assert.Equal(t, []models.ReplyMessage{{Text: "Olá!"}}, out.Messages)
}

func TestSplitTextPrecedence(t *testing.T) {
	long := strings.Repeat("palavra ", 50)

	assert.Equal(t, []string{"um\n\ndois", "tres"}, SplitText("um\n\ndois ||| tres"), "delimiter before paragraphs")
	assert.Equal(t, []string{"um", "dois"}, SplitText("um\n\n\ndois"))
	assert.Equal(t, []string{"curto"}, SplitText("curto"))

	parts := SplitText(long)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.False(t, strings.HasPrefix(p, "alavra"), "cut must not break a word")
	}
	assert.Equal(t, strings.TrimSpace(long), parts[0]+" "+parts[1])
}

func TestSplitTextLongWithoutSpaces(t *testing.T) {
	parts := SplitText(strings.Repeat("x", 301))
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 150)
	assert.Len(t, parts[1], 151)
}

func TestShapeNoInvoiceNotice(t *testing.T) {
	out := Shape(ShapeInput{Text: "qualquer coisa", NoInvoiceNotice: true})
	require.Len(t, out.Messages, 2)
	assert.Equal(t, noInvoiceText, out.Messages[0].Text)
	assert.Nil(t, out.PaymentData)
}

func TestRenderQRDeterministic(t *testing.T) {
	a := RenderQRBase64(pixCode)
	require.NotEmpty(t, a)
	assert.Equal(t, a, RenderQRBase64(pixCode))
	assert.NotEqual(t, a, RenderQRBase64(pixCode+"0"))
	assert.Empty(t, RenderQRBase64("  "))
}
