package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/sandeepkv93/calbill/internal/model"
)

func TestWriteLedger(t *testing.T) {
	records := []model.InvoiceRecord{{
		Number:      2,
		CycleName:   "July",
		ClientName:  "Acme Corp",
		Format:      model.FormatSummary,
		InvoiceDate: time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC),
		TotalHours:  decimal.RequireFromString("7.5"),
		Rate:        decimal.NewFromInt(150),
		Total:       decimal.RequireFromString("1125"),
		Currency:    "INR",
	}}
	cycles := []model.InvoiceCycle{{
		ID:         1,
		Name:       "July",
		RangeStart: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
		Rate:       decimal.NewFromInt(150),
	}}

	var buf bytes.Buffer
	if err := WriteLedger(&buf, records, cycles); err != nil {
		t.Fatalf("write ledger: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	checks := []struct {
		sheet, cell, want string
	}{
		{invoicesSheet, "A1", "Invoice #"},
		{invoicesSheet, "A2", "#002"},
		{invoicesSheet, "B2", "2025-07-31"},
		{invoicesSheet, "D2", "July"},
		{invoicesSheet, "G2", "7.5"},
		{invoicesSheet, "H3", "TOTAL"},
		{cyclesSheet, "B2", "July"},
		{cyclesSheet, "D2", "2025-07-31"},
	}
	for _, c := range checks {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil {
			t.Fatalf("read %s!%s: %v", c.sheet, c.cell, err)
		}
		if got != c.want {
			t.Fatalf("%s!%s = %q, want %q", c.sheet, c.cell, got, c.want)
		}
	}
	if formula, _ := f.GetCellFormula(invoicesSheet, "I3"); formula != "SUM(I2:I2)" {
		t.Fatalf("unexpected total formula %q", formula)
	}
}

func TestWriteLedgerEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLedger(&buf, nil, nil); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
}
