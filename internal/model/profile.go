package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BillingProfile describes the payee printed on every invoice.
type BillingProfile struct {
	FullName            string
	Address             string
	TaxID               string
	PaymentInstructions string
	AccountName         string
	AccountNumber       string
	BankCode            string
	BankName            string
	AccountType         string
	UpdatedAt           time.Time
}

func (p BillingProfile) Validate() error {
	if strings.TrimSpace(p.FullName) == "" {
		return Invalid("profile.full_name", "is required")
	}
	if strings.TrimSpace(p.Address) == "" {
		return Invalid("profile.address", "is required")
	}
	return nil
}

// PaymentLines returns the non-empty payment details in print order.
func (p BillingProfile) PaymentLines() []string {
	fields := []struct {
		label string
		value string
	}{
		{"Account Name", p.AccountName},
		{"Account Number", p.AccountNumber},
		{"Bank Code", p.BankCode},
		{"Bank", p.BankName},
		{"Account Type", p.AccountType},
		{"Tax ID", p.TaxID},
	}
	out := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if strings.TrimSpace(f.value) != "" {
			out = append(out, f.label+": "+strings.TrimSpace(f.value))
		}
	}
	if strings.TrimSpace(p.PaymentInstructions) != "" {
		out = append(out, strings.TrimSpace(p.PaymentInstructions))
	}
	return out
}

type InvoiceFormat string

const (
	FormatSummary  InvoiceFormat = "summary"
	FormatDetailed InvoiceFormat = "detailed"
)

func (f InvoiceFormat) IsValid() bool {
	switch f {
	case FormatSummary, FormatDetailed:
		return true
	default:
		return false
	}
}

// InvoiceRecord is the ledger row kept for every generated invoice.
type InvoiceRecord struct {
	Number       int64
	CycleID      int64
	CycleName    string
	ClientName   string
	Format       InvoiceFormat
	InvoiceDate  time.Time
	DueDate      time.Time
	TotalHours   decimal.Decimal
	Rate         decimal.Decimal
	Total        decimal.Decimal
	Currency     string
	DocumentPath string
	GeneratedAt  time.Time
}
