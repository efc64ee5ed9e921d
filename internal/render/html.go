package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sandeepkv93/calbill/internal/invoice"
	"github.com/sandeepkv93/calbill/internal/model"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var invoiceTemplate = template.Must(template.ParseFS(templateFiles, "templates/invoice.html.tmpl"))

const (
	documentDateLayout = "01/02/2006"
	lineDateLayout     = "01/02"
)

type lineView struct {
	Description string
	Date        string
	Quantity    string
	Rate        string
	Amount      string
}

type documentView struct {
	Number        string
	InvoiceDate   string
	DueDate       string
	DueDays       int
	Currency      string
	Detailed      bool
	Client        model.ClientInfo
	ClientAddress []string
	Payee         model.BillingProfile
	PayeeAddress  []string
	Lines         []lineView
	Total         string
	PaymentLines  []string
}

func newDocumentView(m invoice.Model) documentView {
	v := documentView{
		Number:        m.DisplayNumber(),
		InvoiceDate:   m.InvoiceDate.Format(documentDateLayout),
		DueDate:       m.DueDate.Format(documentDateLayout),
		DueDays:       m.DueDays,
		Currency:      m.Currency,
		Detailed:      m.Format == model.FormatDetailed,
		Client:        m.Client,
		ClientAddress: addressLines(m.Client.Address),
		Payee:         m.Payee,
		PayeeAddress:  addressLines(m.Payee.Address),
		Total:         Money(m.Total),
		PaymentLines:  m.Payee.PaymentLines(),
	}
	for _, line := range m.Lines {
		v.Lines = append(v.Lines, lineView{
			Description: line.Description,
			Date:        line.Date.Format(lineDateLayout),
			Quantity:    line.Quantity.StringFixed(2),
			Rate:        Money(line.Rate),
			Amount:      Money(line.Amount),
		})
	}
	return v
}

// HTML renders the printable invoice document.
func HTML(m invoice.Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, newDocumentView(m)); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is invoice-<NNN>-<YYYY-MM-DD>.pdf.
func FileName(m invoice.Model) string {
	return fmt.Sprintf("invoice-%03d-%s.pdf", m.Number, m.InvoiceDate.Format(model.DateLayout))
}

// Money formats d with two decimals and thousands separators.
func Money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// Addresses are stored with literal "\n" sequences as well as real newlines.
func addressLines(addr string) []string {
	addr = strings.ReplaceAll(addr, `\n`, "\n")
	out := make([]string, 0)
	for _, line := range strings.Split(addr, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
