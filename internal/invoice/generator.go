package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/storage"
)

// Sequence hands out invoice numbers.
type Sequence interface {
	NextInvoiceNumber(ctx context.Context) (int64, error)
}

type Store interface {
	GetCycle(ctx context.Context, id int64) (model.InvoiceCycle, error)
	EventsForCycle(ctx context.Context, cycleID int64) ([]model.CalendarEvent, error)
	GetProfile(ctx context.Context) (model.BillingProfile, error)
	RecordInvoice(ctx context.Context, in model.InvoiceRecord) error
}

// Renderer writes the document for m and returns where it was written.
type Renderer interface {
	Render(ctx context.Context, m Model) (string, error)
}

type Request struct {
	CycleID     int64
	Format      model.InvoiceFormat
	Rate        decimal.Decimal
	InvoiceDate time.Time
	DueDays     int
}

type Generator struct {
	Sequence Sequence
	Store    Store
	Renderer Renderer
	Currency string
	Location *time.Location
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Prepare loads the cycle, its events and the billing profile and computes
// the invoice under the next free number. Nothing is written.
func (g *Generator) Prepare(ctx context.Context, req Request) (Model, error) {
	cycle, err := g.Store.GetCycle(ctx, req.CycleID)
	if errors.Is(err, storage.ErrNotFound) {
		return Model{}, model.Invalid("cycle_id", "cycle %d does not exist", req.CycleID)
	}
	if err != nil {
		return Model{}, fmt.Errorf("load cycle %d: %w", req.CycleID, err)
	}
	events, err := g.Store.EventsForCycle(ctx, req.CycleID)
	if err != nil {
		return Model{}, fmt.Errorf("load events for cycle %d: %w", req.CycleID, err)
	}
	profile, err := g.Store.GetProfile(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return Model{}, model.Invalid("profile", "billing profile is not set, run `calbill profile` first")
	}
	if err != nil {
		return Model{}, fmt.Errorf("load profile: %w", err)
	}
	number, err := g.Sequence.NextInvoiceNumber(ctx)
	if err != nil {
		return Model{}, fmt.Errorf("next invoice number: %w", err)
	}

	invoiceDate := req.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = model.DayStart(g.now().In(g.location()), time.UTC)
	}
	return Compute(Input{
		Cycle:       cycle,
		Events:      events,
		Profile:     profile,
		Format:      req.Format,
		InvoiceDate: invoiceDate,
		DueDays:     req.DueDays,
		Number:      number,
		Currency:    g.Currency,
		Rate:        req.Rate,
		Location:    g.location(),
	})
}

// Generate renders the invoice and records it in the ledger. The ledger row
// is only written once the document exists.
func (g *Generator) Generate(ctx context.Context, req Request) (Model, string, error) {
	m, err := g.Prepare(ctx, req)
	if err != nil {
		return Model{}, "", err
	}
	if g.Renderer == nil {
		return Model{}, "", errors.New("invoice: no renderer configured")
	}
	path, err := g.Renderer.Render(ctx, m)
	if err != nil {
		return Model{}, "", fmt.Errorf("render invoice %s: %w", m.DisplayNumber(), err)
	}
	if err := g.Store.RecordInvoice(ctx, m.Record(path, g.now())); err != nil {
		return Model{}, "", err
	}
	g.logger().Info("invoice generated",
		zap.String("number", m.DisplayNumber()),
		zap.Int64("cycle_id", m.CycleID),
		zap.String("total", m.Total.StringFixed(moneyPlaces)),
		zap.String("path", path),
	)
	return m, path, nil
}

func (g *Generator) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

func (g *Generator) location() *time.Location {
	if g.Location != nil {
		return g.Location
	}
	return time.UTC
}

func (g *Generator) logger() *zap.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return zap.NewNop()
}
