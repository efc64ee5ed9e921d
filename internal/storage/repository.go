package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/calbill/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

type SyncResult struct {
	Inserted  int
	Updated   int
	Unchanged int
}

func (r SyncResult) Total() int {
	return r.Inserted + r.Updated + r.Unchanged
}

type Repository interface {
	Sync(ctx context.Context, events []model.RawEvent) (SyncResult, error)
	Candidates(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
	SetCycle(ctx context.Context, sourceIDs []string, target *int64) error
	EventsForCycle(ctx context.Context, cycleID int64) ([]model.CalendarEvent, error)

	CreateCycle(ctx context.Context, in model.InvoiceCycle) (int64, error)
	GetCycle(ctx context.Context, id int64) (model.InvoiceCycle, error)
	ListCycles(ctx context.Context) ([]model.InvoiceCycle, error)

	GetProfile(ctx context.Context) (model.BillingProfile, error)
	SaveProfile(ctx context.Context, in model.BillingProfile) error

	NextInvoiceNumber(ctx context.Context) (int64, error)
	RecordInvoice(ctx context.Context, in model.InvoiceRecord) error
	GetInvoice(ctx context.Context, number int64) (model.InvoiceRecord, error)
	ListInvoices(ctx context.Context) ([]model.InvoiceRecord, error)
	DeleteInvoice(ctx context.Context, number int64) error

	Close() error
}
