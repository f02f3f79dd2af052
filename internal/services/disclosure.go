package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var paymentKeywords = []string{
	"pix", "boleto", "boletos", "pagamento", "cobranca", "fatura", "faturas", "pagar",
	"codigo", "codigo pix", "linha digitavel", "chave pix", "copiar pix",
	"payment", "invoice", "bill", "pay", "code",
}

var closingKeywords = []string{
	"obrigado", "obrigada", "valeu", "grato", "grata", "agradeco", "tks", "thx",
	"ok", "certo", "beleza", "tchau", "ate mais", "nao preciso", "so isso",
	"thanks", "thank you", "that's all", "bye",
}

// fold lowercases s and strips diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// wordLine folds s and joins its words with single spaces, padded so a
// keyword can be matched on word boundaries with strings.Contains.
func wordLine(s string) string {
	words := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(words, " ") + " "
}

func containsKeyword(msg string, keywords []string) bool {
	line := wordLine(msg)
	for _, kw := range keywords {
		if strings.Contains(line, wordLine(kw)) {
			return true
		}
	}
	return false
}

// IsPaymentRequest reports whether msg explicitly asks about paying.
func IsPaymentRequest(msg string) bool { return containsKeyword(msg, paymentKeywords) }

// IsClosing reports whether msg thanks or closes the conversation.
func IsClosing(msg string) bool { return containsKeyword(msg, closingKeywords) }

// ShouldDisclose decides whether payment details are attached to a reply.
// A closing message never re-discloses once the session already carried a
// payment payload, even when it mentions a payment keyword.
func ShouldDisclose(hasSelection bool, msg string, disclosedEarlier bool) bool {
	if !hasSelection || !IsPaymentRequest(msg) {
		return false
	}
	if IsClosing(msg) && disclosedEarlier {
		return false
	}
	return true
}
