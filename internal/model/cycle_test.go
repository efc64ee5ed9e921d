package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestInvoiceCycleValidate(t *testing.T) {
	base := InvoiceCycle{
		Name:       "July",
		RangeStart: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
		Rate:       decimal.NewFromInt(150),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid cycle, got %v", err)
	}

	single := base
	single.RangeEnd = single.RangeStart
	if err := single.Validate(); err != nil {
		t.Fatalf("single-day cycle should be valid, got %v", err)
	}

	reversed := base
	reversed.RangeEnd = base.RangeStart.AddDate(0, 0, -1)
	if err := reversed.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for reversed range, got %v", err)
	}

	free := base
	free.Rate = decimal.Zero
	if err := free.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero rate, got %v", err)
	}

	unnamed := base
	unnamed.Name = "  "
	if err := unnamed.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank name, got %v", err)
	}
}

func TestInvoiceCycleWindow(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	c := InvoiceCycle{
		RangeStart: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	from, to := c.Window(loc)
	if from.Format(time.RFC3339) != "2025-07-01T00:00:00+05:30" {
		t.Fatalf("unexpected window start: %s", from.Format(time.RFC3339))
	}
	if to.Format(time.RFC3339) != "2025-08-01T00:00:00+05:30" {
		t.Fatalf("unexpected window end: %s", to.Format(time.RFC3339))
	}
}

func TestParseRate(t *testing.T) {
	rate, err := ParseRate("150.50")
	if err != nil || rate.String() != "150.5" {
		t.Fatalf("unexpected rate parse: %v %v", rate, err)
	}
	for _, bad := range []string{"", "abc", "0", "-10"} {
		if _, err := ParseRate(bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("ParseRate(%q): expected ErrValidation, got %v", bad, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("start", "2025-07-31")
	if err != nil || d.Format(DateLayout) != "2025-07-31" {
		t.Fatalf("unexpected date parse: %v %v", d, err)
	}
	if _, err := ParseDate("start", "31/07/2025"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBillingProfileValidate(t *testing.T) {
	p := BillingProfile{FullName: "Jane Doe", Address: "1 Main St"}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}
	p.Address = ""
	if err := p.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
