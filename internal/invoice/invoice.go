// Package invoice merges the two SGP invoice feeds and picks the one
// invoice the assistant may present.
package invoice

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"isp-agent-service/internal/sgp"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
)

type Invoice struct {
	ID             string          `json:"id"`
	Status         Status          `json:"status"`
	DueDate        time.Time       `json:"-"`
	Amount         decimal.Decimal `json:"-"`
	PixCode        string          `json:"codigoPix"`
	BarCode        string          `json:"linhaDigitavel"`
	Link           string          `json:"link"`
	ChargeLink     string          `json:"link_cobranca"`
	DocumentNumber string          `json:"numeroDocumento"`
	Contract       string          `json:"clienteContrato"`
}

// DueDateString renders the due date as the SGP does, YYYY-MM-DD.
func (i Invoice) DueDateString() string { return i.DueDate.Format("2006-01-02") }

// FormattedAmount renders the amount with two decimals.
func (i Invoice) FormattedAmount() string { return i.Amount.StringFixed(2) }

type Buckets struct {
	// Merged is every record after the feed merge, before filtering.
	Merged   []map[string]any
	Overdue  []Invoice
	Pending  []Invoice
	Paid     []Invoice
	Selected *Invoice
}

// Select merges titles with secondCopy (titles win on key conflicts),
// classifies every record relative to today and selects the oldest overdue
// invoice, else the oldest pending one.
func Select(titles, secondCopy []map[string]any, today time.Time) Buckets {
	merged := merge(titles, secondCopy)
	day := truncateDay(today)

	b := Buckets{Merged: merged}
	for _, rec := range merged {
		inv, ok := classify(rec, day)
		if !ok {
			continue
		}
		switch inv.Status {
		case StatusOverdue:
			b.Overdue = append(b.Overdue, inv)
		case StatusPending:
			b.Pending = append(b.Pending, inv)
		case StatusPaid:
			b.Paid = append(b.Paid, inv)
		}
	}
	byDue := func(list []Invoice) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].DueDate.Before(list[j].DueDate) })
	}
	byDue(b.Overdue)
	byDue(b.Pending)

	switch {
	case len(b.Overdue) > 0:
		sel := b.Overdue[0]
		b.Selected = &sel
	case len(b.Pending) > 0:
		sel := b.Pending[0]
		b.Selected = &sel
	}
	return b
}

func merge(titles, secondCopy []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(titles)+len(secondCopy))
	seen := make(map[string]struct{})
	for _, rec := range titles {
		if k := recordKey(rec); k != "" {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, rec)
	}
	for _, rec := range secondCopy {
		k := recordKey(rec)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func recordKey(rec map[string]any) string {
	if k := sgp.String(rec["id"]); k != "" {
		return k
	}
	return sgp.String(rec["fatura"])
}

func classify(rec map[string]any, today time.Time) (Invoice, bool) {
	status := strings.ToLower(firstString(rec, "status", "status_display"))
	if strings.Contains(status, "cancel") {
		return Invoice{}, false
	}
	due, ok := parseDueDate(firstString(rec, "dataVencimento", "vencimento", "vencimento_original"))
	if !ok {
		return Invoice{}, false
	}

	paid := containsAny(status, "pago", "liquidado", "paid")
	open := containsAny(status, "aberto", "open")
	overdue := containsAny(status, "vencido", "atrasado", "overdue")

	var st Status
	switch {
	case overdue, open && due.Before(today):
		st = StatusOverdue
	case open:
		st = StatusPending
	case paid:
		st = StatusPaid
	default:
		// Neither settled nor open: future charges and unknown states.
		return Invoice{}, false
	}

	return Invoice{
		ID:             recordKey(rec),
		Status:         st,
		DueDate:        due,
		Amount:         parseAmount(rec["valor"]),
		PixCode:        firstString(rec, "codigoPix", "codigopix"),
		BarCode:        firstString(rec, "linhaDigitavel", "linhadigitavel"),
		Link:           firstString(rec, "link"),
		ChargeLink:     firstString(rec, "link_cobranca"),
		DocumentNumber: firstString(rec, "numeroDocumento"),
		Contract:       firstString(rec, "clienteContrato"),
	}, true
}

func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "T"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, " "); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseAmount(v any) decimal.Decimal {
	s := strings.ReplaceAll(sgp.String(v), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := sgp.String(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// Action is the suggested action for the finance context.
func (b Buckets) Action() string {
	if b.Selected != nil {
		return "send_invoice"
	}
	return "none"
}

// FirstContract returns the owning contract of the first merged record.
func (b Buckets) FirstContract() string {
	if len(b.Merged) == 0 {
		return ""
	}
	return sgp.String(b.Merged[0]["clienteContrato"])
}

type summaryItem struct {
	ID         string `json:"id"`
	Valor      string `json:"valor"`
	Vencimento string `json:"vencimento"`
}

type selectedView struct {
	Invoice
	Valor          string `json:"valor"`
	DataVencimento string `json:"dataVencimento"`
}

// Summary renders the finance context handed to the model.
func (b Buckets) Summary() string {
	items := func(list []Invoice) []summaryItem {
		out := make([]summaryItem, 0, len(list))
		for _, inv := range list {
			out = append(out, summaryItem{ID: inv.ID, Valor: inv.FormattedAmount(), Vencimento: inv.DueDateString()})
		}
		return out
	}
	var sel *selectedView
	if b.Selected != nil {
		sel = &selectedView{Invoice: *b.Selected, Valor: b.Selected.FormattedAmount(), DataVencimento: b.Selected.DueDateString()}
	}
	payload := map[string]any{
		"total_titulos":      len(b.Merged),
		"vencidas":           len(b.Overdue),
		"abertas":            len(b.Pending),
		"pagas":              len(b.Paid),
		"fatura_selecionada": sel,
		"acao_sugerida":      b.Action(),
		"todas_vencidas":     items(b.Overdue),
		"todas_abertas":      items(b.Pending),
	}
	out, _ := json.Marshal(payload)
	return string(out)
}
