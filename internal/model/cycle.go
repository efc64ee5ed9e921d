package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// ClientInfo is the billed party. The core only carries it into invoices.
type ClientInfo struct {
	Name    string
	Address string
	TaxID   string
}

type InvoiceCycle struct {
	ID         int64
	Name       string
	RangeStart time.Time
	RangeEnd   time.Time
	Rate       decimal.Decimal
	Client     ClientInfo
	CreatedAt  time.Time
}

func (c InvoiceCycle) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", "is required")
	}
	if c.RangeStart.IsZero() || c.RangeEnd.IsZero() {
		return Invalid("range", "start and end dates are required")
	}
	if c.RangeEnd.Before(c.RangeStart) {
		return Invalid("range", "end %s is before start %s", c.RangeEnd.Format(DateLayout), c.RangeStart.Format(DateLayout))
	}
	if !c.Rate.IsPositive() {
		return Invalid("rate", "must be greater than zero, got %s", c.Rate.String())
	}
	return nil
}

// Window returns the half-open instant range covered by the cycle: from
// midnight of RangeStart to midnight after RangeEnd, in loc.
func (c InvoiceCycle) Window(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	return DayStart(c.RangeStart, loc), DayStart(c.RangeEnd, loc).AddDate(0, 0, 1)
}

// DayStart returns midnight of d's calendar date in loc.
func DayStart(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(field, value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, Invalid(field, "date is required")
	}
	out, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, Invalid(field, "expected YYYY-MM-DD, got %q", value)
	}
	return out, nil
}

// ParseRate parses a positive hourly rate.
func ParseRate(value string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, Invalid("rate", "not a number: %q", value)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, Invalid("rate", "must be greater than zero, got %s", rate.String())
	}
	return rate, nil
}
