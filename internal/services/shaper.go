package services

import (
	"fmt"
	"strings"
	"unicode"

	"isp-agent-service/internal/invoice"
	"isp-agent-service/internal/models"
)

const (
	MessageDelimiter  = "|||"
	longTextThreshold = 300

	closingQuestion = "Tem mais alguma coisa em que eu possa ajudar?"
	noInvoiceText   = "Parabéns, você não possui faturas vencidas ou em aberto no momento. 😊"
)

// ShapeInput is everything the shaper needs from one turn.
type ShapeInput struct {
	Text     string
	Selected *invoice.Invoice
	Disclose bool
	// NoInvoiceNotice requests the "nothing to pay" sequence.
	NoInvoiceNotice bool
}

type Shaped struct {
	Messages    []models.ReplyMessage
	PaymentData *models.PaymentData
	Action      string
}

// Shape turns the final model text into delivered messages. The invoice
// sequence wins over model text; then the explicit delimiter, paragraph
// breaks, a midpoint cut for long texts, and finally the whole text.
func Shape(in ShapeInput) Shaped {
	if in.Disclose && in.Selected != nil {
		pd := paymentData(*in.Selected)
		return Shaped{
			Messages:    invoiceSequence(*in.Selected, pd),
			PaymentData: pd,
			Action:      models.ActionSendInvoice,
		}
	}
	if in.NoInvoiceNotice {
		return Shaped{
			Messages: []models.ReplyMessage{{Text: noInvoiceText}, {Text: closingQuestion}},
			Action:   models.ActionNone,
		}
	}

	parts := SplitText(in.Text)
	out := Shaped{Action: models.ActionNone, Messages: make([]models.ReplyMessage, 0, len(parts))}
	for _, p := range parts {
		out.Messages = append(out.Messages, models.ReplyMessage{Text: p})
	}
	return out
}

func paymentData(inv invoice.Invoice) *models.PaymentData {
	pd := &models.PaymentData{CodigoPix: inv.PixCode, LinhaDigitavel: inv.BarCode}
	if inv.PixCode != "" {
		pd.QRCodeBase64 = RenderQRBase64(inv.PixCode)
	}
	return pd
}

func invoiceSequence(inv invoice.Invoice, pd *models.PaymentData) []models.ReplyMessage {
	kind := "em aberto"
	if inv.Status == invoice.StatusOverdue {
		kind = "vencida"
	}
	card := fmt.Sprintf("💳 Sua fatura %s:\n\nFatura ID: %s\nVencimento: %s\nValor: R$ %s",
		kind, inv.ID, inv.DueDate.Format("02/01/2006"), inv.FormattedAmount())
	return []models.ReplyMessage{
		{Text: card},
		{Text: "Segue seu QRcode PIX para pagamento."},
		{Text: "Aqui está:", PaymentData: pd},
		{Text: closingQuestion},
	}
}

// SplitText applies the text-only splitting rules.
func SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if strings.Contains(text, MessageDelimiter) {
		if parts := nonEmpty(strings.Split(text, MessageDelimiter)); len(parts) > 0 {
			return parts
		}
	}
	if parts := paragraphs(text); len(parts) > 1 {
		return parts
	}
	if len([]rune(text)) > longTextThreshold {
		return midpointSplit(text)
	}
	return []string{text}
}

func paragraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	var cur []string
	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				out = append(out, strings.TrimSpace(strings.Join(cur, "\n")))
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		out = append(out, strings.TrimSpace(strings.Join(cur, "\n")))
	}
	return out
}

// midpointSplit cuts at the whitespace closest to the middle so words are
// never broken; without whitespace it cuts at the rune midpoint.
func midpointSplit(text string) []string {
	r := []rune(text)
	mid := len(r) / 2
	cut := -1
	for d := 0; d < len(r)/2; d++ {
		if i := mid - d; i > 0 && unicode.IsSpace(r[i]) {
			cut = i
			break
		}
		if i := mid + d; i < len(r)-1 && unicode.IsSpace(r[i]) {
			cut = i
			break
		}
	}
	if cut < 0 {
		cut = mid
	}
	return nonEmpty([]string{string(r[:cut]), string(r[cut:])})
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
