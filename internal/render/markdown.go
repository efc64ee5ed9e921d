package render

import (
	"fmt"
	"strings"

	"github.com/sandeepkv93/calbill/internal/invoice"
	"github.com/sandeepkv93/calbill/internal/views"
)

// Markdown renders a plain-text preview of the invoice.
func Markdown(m invoice.Model) string {
	v := newDocumentView(m)
	var b strings.Builder

	fmt.Fprintf(&b, "# Invoice %s\n\n", v.Number)
	fmt.Fprintf(&b, "- **Invoice Date:** %s\n", v.InvoiceDate)
	fmt.Fprintf(&b, "- **Due date:** %s\n", v.DueDate)
	fmt.Fprintf(&b, "- **Payment terms:** Net %d\n\n", v.DueDays)

	b.WriteString("## Billed to\n\n")
	if v.Client.Name != "" {
		fmt.Fprintf(&b, "%s  \n", v.Client.Name)
	}
	for _, line := range v.ClientAddress {
		fmt.Fprintf(&b, "%s  \n", line)
	}
	if v.Client.TaxID != "" {
		fmt.Fprintf(&b, "Tax ID - %s  \n", v.Client.TaxID)
	}
	b.WriteString("\n## Pay to\n\n")
	fmt.Fprintf(&b, "%s  \n", v.Payee.FullName)
	for _, line := range v.PayeeAddress {
		fmt.Fprintf(&b, "%s  \n", line)
	}
	b.WriteString("\n")

	if v.Detailed {
		b.WriteString("| Description | Date | Hours | Rate | Amount |\n")
		b.WriteString("|---|---|--:|--:|--:|\n")
		for _, line := range v.Lines {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", escapeCell(line.Description), line.Date, line.Quantity, line.Rate, line.Amount)
		}
	} else {
		b.WriteString("| Description | Quantity | Amount |\n")
		b.WriteString("|---|--:|--:|\n")
		for _, line := range v.Lines {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(line.Description), line.Quantity, line.Amount)
		}
	}
	fmt.Fprintf(&b, "\n**Total: %s %s**\n", v.Total, v.Currency)

	if len(v.PaymentLines) > 0 {
		b.WriteString("\n## Payment Information\n\n")
		for _, line := range v.PaymentLines {
			fmt.Fprintf(&b, "%s  \n", line)
		}
	}
	return b.String()
}

// Terminal renders the Markdown preview for a terminal.
func Terminal(m invoice.Model) string {
	return views.RenderMarkdown(Markdown(m))
}

func escapeCell(v string) string {
	return strings.ReplaceAll(v, "|", `\|`)
}
