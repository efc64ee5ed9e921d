package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/calbill/internal/model"
)

var ErrNotAuthorized = errors.New("calendar: not authorized, run `calbill auth` first")

// Source fetches timed events that intersect [start, end).
type Source interface {
	Fetch(ctx context.Context, start, end time.Time) ([]model.RawEvent, error)
}

type CalendarInfo struct {
	ID      string
	Summary string
	Primary bool
}

const untitledEvent = "No Title"

func titleOrDefault(title string) string {
	if title == "" {
		return untitledEvent
	}
	return title
}
