package app

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/calbill/internal/commands"
	"github.com/sandeepkv93/calbill/internal/cycle"
	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/update"
	"github.com/sandeepkv93/calbill/internal/views"
)

func (a *App) cycleCreate(ctx context.Context, args commands.CycleCreateArgs) (commands.Result, error) {
	id, err := a.cycles.Create(ctx, cycle.CreateInput{
		Name:       args.Name,
		RangeStart: args.Start,
		RangeEnd:   args.End,
		Rate:       args.Rate,
		Client:     args.Client,
	})
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: views.RenderNotice("ok", fmt.Sprintf("Created invoice cycle '%s' (ID: %d)", args.Name, id))}, nil
}

func (a *App) cycleList(ctx context.Context) (commands.Result, error) {
	cycles, err := a.cycles.List(ctx)
	if err != nil {
		return commands.Result{}, err
	}
	rows := make([]views.CycleRowData, 0, len(cycles))
	for _, c := range cycles {
		rows = append(rows, views.CycleRowData{
			ID:     c.ID,
			Name:   c.Name,
			Period: period(c),
			Rate:   a.rateLabel(c.Rate),
			Client: c.Client.Name,
		})
	}
	return commands.Result{Message: views.RenderCycles(rows)}, nil
}

func (a *App) cycleShow(ctx context.Context, args commands.CycleArgs) (commands.Result, error) {
	c, err := a.cycles.Get(ctx, args.ID)
	if err != nil {
		return commands.Result{}, err
	}
	events, err := a.cycles.Events(ctx, c.ID)
	if err != nil {
		return commands.Result{}, err
	}
	names := map[int64]string{c.ID: c.Name}
	return commands.Result{Message: views.RenderCycleDetail(views.CycleDetailData{
		Cycle: views.CycleRowData{
			ID:     c.ID,
			Name:   c.Name,
			Period: period(c),
			Rate:   a.rateLabel(c.Rate),
			Client: c.Client.Name,
		},
		Address: c.Client.Address,
		TaxID:   c.Client.TaxID,
		Events:  update.EventRows(events, names, c.ID, a.loc),
		Total:   model.RoundedHours(cycle.TotalDuration(events), 2).StringFixed(2),
	})}, nil
}

// cycleAssign assigns by expression when one is given and opens the picker
// otherwise.
func (a *App) cycleAssign(ctx context.Context, args commands.CycleAssignArgs) (commands.Result, error) {
	c, err := a.cycles.Get(ctx, args.ID)
	if err != nil {
		return commands.Result{}, err
	}
	candidates, err := a.cycles.Candidates(ctx, c.ID)
	if err != nil {
		return commands.Result{}, err
	}
	if len(candidates) == 0 {
		return commands.Result{Message: fmt.Sprintf("No events found for cycle period %s. Run `calbill sync` first.", period(c))}, nil
	}

	var res cycle.AssignResult
	if args.Selection != "" {
		res, err = a.cycles.Assign(ctx, c.ID, candidates, args.Selection)
		if err != nil {
			return commands.Result{}, err
		}
	} else {
		names, err := a.cycleNames(ctx)
		if err != nil {
			return commands.Result{}, err
		}
		final, err := a.picker(ctx, a.cycles, update.PickerConfig{
			Cycle:      c,
			Candidates: candidates,
			CycleNames: names,
			Location:   a.loc,
		})
		if err != nil {
			return commands.Result{}, err
		}
		if final.LastError != nil {
			return commands.Result{}, final.LastError
		}
		if final.Result == nil {
			return commands.Result{Message: "No events assigned."}, nil
		}
		res = *final.Result
	}
	if len(res.Assigned) == 0 {
		return commands.Result{Message: "No events selected."}, nil
	}
	return commands.Result{Message: views.RenderNotice("ok", fmt.Sprintf("Assigned %d events (%s hours) to cycle '%s'", len(res.Assigned), res.Hours.StringFixed(2), c.Name))}, nil
}

func (a *App) cycleUnassign(ctx context.Context, args commands.CycleUnassignArgs) (commands.Result, error) {
	if err := a.cycles.Unassign(ctx, args.ID, args.SourceIDs); err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: views.RenderNotice("ok", fmt.Sprintf("Released %d events from cycle %d", len(args.SourceIDs), args.ID))}, nil
}
