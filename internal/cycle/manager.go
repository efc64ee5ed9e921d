package cycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/selection"
	"github.com/sandeepkv93/calbill/internal/storage"
)

// Store is the subset of the repository the manager depends on.
type Store interface {
	Candidates(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
	SetCycle(ctx context.Context, sourceIDs []string, target *int64) error
	EventsForCycle(ctx context.Context, cycleID int64) ([]model.CalendarEvent, error)
	CreateCycle(ctx context.Context, in model.InvoiceCycle) (int64, error)
	GetCycle(ctx context.Context, id int64) (model.InvoiceCycle, error)
	ListCycles(ctx context.Context) ([]model.InvoiceCycle, error)
}

type CreateInput struct {
	Name       string
	RangeStart time.Time
	RangeEnd   time.Time
	Rate       decimal.Decimal
	Client     model.ClientInfo
}

type AssignResult struct {
	Assigned []model.CalendarEvent
	Hours    decimal.Decimal
}

type Manager struct {
	store  Store
	logger *zap.Logger
	loc    *time.Location
}

func NewManager(store Store, logger *zap.Logger, loc *time.Location) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{store: store, logger: logger.Named("cycle"), loc: loc}
}

func (m *Manager) Location() *time.Location {
	return m.loc
}

func (m *Manager) Create(ctx context.Context, in CreateInput) (int64, error) {
	c := model.InvoiceCycle{
		Name:       strings.TrimSpace(in.Name),
		RangeStart: in.RangeStart,
		RangeEnd:   in.RangeEnd,
		Rate:       in.Rate,
		Client:     in.Client,
	}
	if err := c.Validate(); err != nil {
		return 0, err
	}
	id, err := m.store.CreateCycle(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("create cycle: %w", err)
	}
	m.logger.Info("cycle created",
		zap.Int64("cycle_id", id),
		zap.String("name", c.Name),
		zap.String("range_start", c.RangeStart.Format(model.DateLayout)),
		zap.String("range_end", c.RangeEnd.Format(model.DateLayout)),
		zap.String("rate", c.Rate.String()),
	)
	return id, nil
}

// Get returns the cycle or a ValidationError when id is unknown.
func (m *Manager) Get(ctx context.Context, id int64) (model.InvoiceCycle, error) {
	c, err := m.store.GetCycle(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.InvoiceCycle{}, model.Invalid("cycle_id", "cycle %d does not exist", id)
	}
	return c, err
}

func (m *Manager) List(ctx context.Context) ([]model.InvoiceCycle, error) {
	return m.store.ListCycles(ctx)
}

// Candidates lists every cached event that intersects the cycle's date
// range, including events already owned by some cycle.
func (m *Manager) Candidates(ctx context.Context, cycleID int64) ([]model.CalendarEvent, error) {
	c, err := m.Get(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	from, to := c.Window(m.loc)
	return m.store.Candidates(ctx, from, to)
}

// Events returns the events owned by the cycle, earliest first.
func (m *Manager) Events(ctx context.Context, cycleID int64) ([]model.CalendarEvent, error) {
	if _, err := m.Get(ctx, cycleID); err != nil {
		return nil, err
	}
	return m.store.EventsForCycle(ctx, cycleID)
}

// Assign resolves expr against candidates (1-based, in the order they were
// shown) and gives every picked event to the cycle. Nothing changes unless
// every picked event can be assigned.
func (m *Manager) Assign(ctx context.Context, cycleID int64, candidates []model.CalendarEvent, expr string) (AssignResult, error) {
	c, err := m.Get(ctx, cycleID)
	if err != nil {
		return AssignResult{}, err
	}
	indices, err := selection.Parse(expr, len(candidates))
	if err != nil {
		return AssignResult{}, err
	}
	picked := selection.Pick(indices, candidates)
	if len(picked) == 0 {
		return AssignResult{Assigned: picked, Hours: decimal.Zero}, nil
	}

	from, to := c.Window(m.loc)
	ids := make([]string, 0, len(picked))
	for _, ev := range picked {
		if !ev.Overlaps(from, to) {
			return AssignResult{}, model.Invalid("selection", "event %s (%q) is outside cycle %d range %s to %s",
				ev.SourceID, ev.Title, cycleID, c.RangeStart.Format(model.DateLayout), c.RangeEnd.Format(model.DateLayout))
		}
		ids = append(ids, ev.SourceID)
	}

	if err := m.store.SetCycle(ctx, ids, &cycleID); err != nil {
		var ce *model.ConflictError
		if errors.As(err, &ce) {
			m.logger.Warn("assignment rejected",
				zap.Int64("cycle_id", cycleID),
				zap.Strings("conflicting_ids", ce.SourceIDs()),
			)
		}
		return AssignResult{}, err
	}

	hours := TotalHours(picked)
	m.logger.Info("events assigned",
		zap.Int64("cycle_id", cycleID),
		zap.Int("count", len(picked)),
		zap.String("hours", hours.StringFixed(2)),
	)
	return AssignResult{Assigned: picked, Hours: hours}, nil
}

// Unassign releases events owned by the cycle. Every id must currently
// belong to it.
func (m *Manager) Unassign(ctx context.Context, cycleID int64, sourceIDs []string) error {
	if len(sourceIDs) == 0 {
		return model.Invalid("source_id", "at least one event id is required")
	}
	owned, err := m.Events(ctx, cycleID)
	if err != nil {
		return err
	}
	mine := make(map[string]bool, len(owned))
	for _, ev := range owned {
		mine[ev.SourceID] = true
	}
	foreign := make([]string, 0)
	for _, id := range sourceIDs {
		if !mine[id] {
			foreign = append(foreign, id)
		}
	}
	if len(foreign) > 0 {
		return model.Invalid("source_id", "not assigned to cycle %d: %s", cycleID, strings.Join(foreign, ", "))
	}
	if err := m.store.SetCycle(ctx, sourceIDs, nil); err != nil {
		return err
	}
	m.logger.Info("events unassigned", zap.Int64("cycle_id", cycleID), zap.Int("count", len(sourceIDs)))
	return nil
}

// TotalHours sums raw event durations in hours without rounding.
func TotalHours(events []model.CalendarEvent) decimal.Decimal {
	return model.Hours(TotalDuration(events))
}

func TotalDuration(events []model.CalendarEvent) time.Duration {
	var total time.Duration
	for _, ev := range events {
		total += ev.Duration()
	}
	return total
}
