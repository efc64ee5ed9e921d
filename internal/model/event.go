package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawEvent is a calendar entry exactly as a calendar client delivers it.
type RawEvent struct {
	SourceID string
	Title    string
	Start    time.Time
	End      time.Time
}

func (e RawEvent) Validate() error {
	if strings.TrimSpace(e.SourceID) == "" {
		return Invalid("source_id", "is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return Invalid("start", "event %s has no start or end time", e.SourceID)
	}
	if e.End.Before(e.Start) {
		return Invalid("end", "event %s ends before it starts", e.SourceID)
	}
	return nil
}

// CalendarEvent is a cached event together with its cycle assignment.
type CalendarEvent struct {
	SourceID string
	Title    string
	Start    time.Time
	End      time.Time
	CycleID  *int64
}

func (e CalendarEvent) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

func (e CalendarEvent) Assigned() bool {
	return e.CycleID != nil
}

func (e CalendarEvent) OwnedBy(cycleID int64) bool {
	return e.CycleID != nil && *e.CycleID == cycleID
}

// Overlaps reports whether the event intersects the half-open window
// [from, to). Zero-length events count when their instant lies inside it.
func (e CalendarEvent) Overlaps(from, to time.Time) bool {
	if e.Start.Equal(e.End) {
		return !e.Start.Before(from) && e.Start.Before(to)
	}
	return e.Start.Before(to) && e.End.After(from)
}

// SameContent reports whether the cached event already matches raw.
func (e CalendarEvent) SameContent(raw RawEvent) bool {
	return e.Title == raw.Title && e.Start.Equal(raw.Start) && e.End.Equal(raw.End)
}

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// Hours converts d to fractional hours without rounding.
func Hours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(nanosPerHour)
}

// RoundedHours converts d to hours rounded half away from zero to places,
// rounding from the exact quotient.
func RoundedHours(d time.Duration, places int32) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).DivRound(nanosPerHour, places)
}

// Charge bills d at rate per hour, rounded half away from zero to places.
// It multiplies before dividing and rounds once.
func Charge(d time.Duration, rate decimal.Decimal, places int32) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Mul(rate).DivRound(nanosPerHour, places)
}

// Hours is the event duration in unrounded hours.
func (e CalendarEvent) Hours() decimal.Decimal {
	return Hours(e.Duration())
}
