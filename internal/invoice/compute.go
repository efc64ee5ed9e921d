package invoice

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/sandeepkv93/calbill/internal/model"
)

const (
	moneyPlaces      = 2
	maxTitleRunes    = 50
	untitledLine     = "(untitled)"
	periodLayout     = "Jan '06"
	displayNumberFmt = "#%03d"
)

type LineItem struct {
	Description string
	Date        time.Time
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal
}

// Model is everything a renderer needs. It is derived data and can always be
// recomputed from the cycle, its events and the profile.
type Model struct {
	Number      int64
	InvoiceDate time.Time
	DueDate     time.Time
	DueDays     int
	Format      model.InvoiceFormat
	Currency    string
	CycleID     int64
	CycleName   string
	Period      string
	Client      model.ClientInfo
	Payee       model.BillingProfile
	Lines       []LineItem
	TotalHours  decimal.Decimal
	Rate        decimal.Decimal
	Total       decimal.Decimal
}

func (m Model) DisplayNumber() string {
	return FormatNumber(m.Number)
}

func FormatNumber(n int64) string {
	return fmt.Sprintf(displayNumberFmt, n)
}

// Record is the ledger row describing m once its document exists at path.
func (m Model) Record(path string, generatedAt time.Time) model.InvoiceRecord {
	return model.InvoiceRecord{
		Number:       m.Number,
		CycleID:      m.CycleID,
		CycleName:    m.CycleName,
		ClientName:   m.Client.Name,
		Format:       m.Format,
		InvoiceDate:  m.InvoiceDate,
		DueDate:      m.DueDate,
		TotalHours:   m.TotalHours,
		Rate:         m.Rate,
		Total:        m.Total,
		Currency:     m.Currency,
		DocumentPath: path,
		GeneratedAt:  generatedAt,
	}
}

type Input struct {
	Cycle       model.InvoiceCycle
	Events      []model.CalendarEvent
	Profile     model.BillingProfile
	Format      model.InvoiceFormat
	InvoiceDate time.Time
	DueDays     int
	Number      int64
	Currency    string
	// Rate overrides the cycle rate when positive.
	Rate     decimal.Decimal
	Location *time.Location
}

// Compute builds the invoice for a cycle. It has no side effects.
func Compute(in Input) (Model, error) {
	if len(in.Events) == 0 {
		return Model{}, model.Invalid("events", "cycle %d has no assigned events", in.Cycle.ID)
	}
	if err := in.Profile.Validate(); err != nil {
		return Model{}, err
	}
	if in.DueDays < 0 {
		return Model{}, model.Invalid("due_days", "must not be negative, got %d", in.DueDays)
	}
	if in.Number <= 0 {
		return Model{}, model.Invalid("number", "must be positive, got %d", in.Number)
	}
	if in.InvoiceDate.IsZero() {
		return Model{}, model.Invalid("invoice_date", "is required")
	}
	format := in.Format
	if format == "" {
		format = model.FormatSummary
	}
	if !format.IsValid() {
		return Model{}, model.Invalid("format", "unknown invoice format %q", in.Format)
	}
	rate := in.Cycle.Rate
	if in.Rate.IsNegative() {
		return Model{}, model.Invalid("rate", "must be greater than zero, got %s", in.Rate.String())
	}
	if in.Rate.IsPositive() {
		rate = in.Rate
	}
	if !rate.IsPositive() {
		return Model{}, model.Invalid("rate", "must be greater than zero, got %s", rate.String())
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	currency := strings.TrimSpace(in.Currency)

	events := append([]model.CalendarEvent(nil), in.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].SourceID < events[j].SourceID
	})

	var raw time.Duration
	for _, ev := range events {
		raw += ev.Duration()
	}
	period := PeriodLabel(in.Cycle.RangeStart, in.Cycle.RangeEnd)

	out := Model{
		Number:      in.Number,
		InvoiceDate: in.InvoiceDate,
		DueDate:     in.InvoiceDate.AddDate(0, 0, in.DueDays),
		DueDays:     in.DueDays,
		Format:      format,
		Currency:    currency,
		CycleID:     in.Cycle.ID,
		CycleName:   in.Cycle.Name,
		Period:      period,
		Client:      in.Cycle.Client,
		Payee:       in.Profile,
		TotalHours:  model.RoundedHours(raw, moneyPlaces),
		Rate:        rate,
	}

	switch format {
	case model.FormatDetailed:
		out.Lines = make([]LineItem, 0, len(events))
		total := decimal.Zero
		for _, ev := range events {
			line := LineItem{
				Description: lineTitle(ev.Title),
				Date:        ev.Start.In(loc),
				Quantity:    model.RoundedHours(ev.Duration(), moneyPlaces),
				Rate:        rate,
				Amount:      model.Charge(ev.Duration(), rate, moneyPlaces),
			}
			total = total.Add(line.Amount)
			out.Lines = append(out.Lines, line)
		}
		out.Total = total
	default:
		amount := model.Charge(raw, rate, moneyPlaces)
		out.Lines = []LineItem{{
			Description: fmt.Sprintf("Consulting charges - %s (%s hours x %s %s/hour)",
				period, out.TotalHours.StringFixed(moneyPlaces), rate.String(), currency),
			Date:     in.Cycle.RangeEnd,
			Quantity: out.TotalHours,
			Rate:     rate,
			Amount:   amount,
		}}
		out.Total = amount
	}
	return out, nil
}

// PeriodLabel names the months a cycle covers, e.g. "Jul '25" or
// "Jul '25 - Aug '25".
func PeriodLabel(start, end time.Time) string {
	if start.Year() == end.Year() && start.Month() == end.Month() {
		return start.Format(periodLayout)
	}
	return start.Format(periodLayout) + " - " + end.Format(periodLayout)
}

func lineTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return untitledLine
	}
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	return string([]rune(title)[:maxTitleRunes])
}
