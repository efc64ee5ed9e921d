package update

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/sandeepkv93/calbill/internal/cycle"
	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/selection"
)

type fakeAssigner struct {
	calls []string
	err   error
}

func (f *fakeAssigner) Assign(_ context.Context, _ int64, candidates []model.CalendarEvent, expr string) (cycle.AssignResult, error) {
	f.calls = append(f.calls, expr)
	indices, err := selection.Parse(expr, len(candidates))
	if err != nil {
		return cycle.AssignResult{}, err
	}
	if f.err != nil {
		return cycle.AssignResult{}, f.err
	}
	picked := selection.Pick(indices, candidates)
	return cycle.AssignResult{Assigned: picked, Hours: cycle.TotalHours(picked)}, nil
}

func pickerFixture(a Assigner) AssignPicker {
	start := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	other := int64(2)
	return NewAssignPicker(context.Background(), a, PickerConfig{
		Cycle: model.InvoiceCycle{
			ID:         1,
			Name:       "July",
			RangeStart: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			RangeEnd:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
			Rate:       decimal.NewFromInt(150),
		},
		Candidates: []model.CalendarEvent{
			{SourceID: "a", Title: "Review", Start: start, End: start.Add(2 * time.Hour)},
			{SourceID: "b", Title: "Pairing", Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 1).Add(90 * time.Minute)},
			{SourceID: "c", Title: "Workshop", Start: start.AddDate(0, 0, 2), End: start.AddDate(0, 0, 2).Add(4 * time.Hour), CycleID: &other},
		},
		CycleNames: map[int64]string{1: "July", 2: "June"},
	})
}

func press(t *testing.T, m tea.Model, keys ...tea.KeyMsg) (AssignPicker, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(k)
	}
	return m.(AssignPicker), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keySpace = tea.KeyMsg{Type: tea.KeySpace}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestPickerToggleAndAssign(t *testing.T) {
	fa := &fakeAssigner{}
	p, cmd := press(t, pickerFixture(fa), keySpace, keyDown, keySpace, keyEnter)
	if len(fa.calls) != 1 || fa.calls[0] != "1-2" {
		t.Fatalf("unexpected assign calls %v", fa.calls)
	}
	if p.Result == nil || len(p.Result.Assigned) != 2 || p.Result.Hours.StringFixed(2) != "3.50" {
		t.Fatalf("unexpected result %+v", p.Result)
	}
	if !p.Quitting || cmd == nil {
		t.Fatal("picker should quit after a successful assignment")
	}
}

func TestPickerEnterWithoutSelection(t *testing.T) {
	fa := &fakeAssigner{}
	p, _ := press(t, pickerFixture(fa), keyEnter)
	if len(fa.calls) != 0 {
		t.Fatalf("assign should not run without a selection, got %v", fa.calls)
	}
	if !p.Status.IsError || p.Quitting {
		t.Fatalf("expected an error status and no quit, got %+v", p.Status)
	}
}

func TestPickerBadSelectionReprompts(t *testing.T) {
	fa := &fakeAssigner{}
	p, _ := press(t, pickerFixture(fa), keyTab, runes("9"), keyEnter)
	if !p.Status.IsError || !strings.Contains(p.Status.Text, "selection") {
		t.Fatalf("expected selection error, got %+v", p.Status)
	}
	if p.Quitting || !p.Typing() {
		t.Fatal("picker should stay open in typing mode after a bad selection")
	}

	p, _ = press(t, p, keyEsc, keyTab, runes("all"), keyEnter)
	if p.Result == nil || len(p.Result.Assigned) != 3 {
		t.Fatalf("expected all three events assigned, got %+v", p.Result)
	}
	if fa.calls[len(fa.calls)-1] != "all" {
		t.Fatalf("unexpected final expression %q", fa.calls[len(fa.calls)-1])
	}
}

func TestPickerConflictKeepsPickerOpen(t *testing.T) {
	fa := &fakeAssigner{err: &model.ConflictError{TargetCycleID: 1, Conflicts: []model.Conflict{{SourceID: "c", Title: "Workshop", CycleID: 2}}}}
	p, _ := press(t, pickerFixture(fa), runes("a"), keyEnter)
	if fa.calls[0] != "1-3" {
		t.Fatalf("unexpected expression %q", fa.calls[0])
	}
	if p.Quitting || p.Result != nil {
		t.Fatal("conflict should not finish the session")
	}
	if !strings.Contains(p.Status.Text, `"Workshop" belongs to June`) {
		t.Fatalf("unexpected conflict status %q", p.Status.Text)
	}
}

func TestPickerStorageErrorQuits(t *testing.T) {
	fa := &fakeAssigner{err: errors.New("disk full")}
	p, _ := press(t, pickerFixture(fa), keySpace, keyEnter)
	if !p.Quitting || p.LastError == nil {
		t.Fatalf("expected quit with error, got %+v", p)
	}
}

func TestPickerCancel(t *testing.T) {
	p, cmd := press(t, pickerFixture(&fakeAssigner{}), keyEsc)
	if !p.Cancelled || cmd == nil {
		t.Fatal("esc should cancel the picker")
	}
	if p.View() != "" {
		t.Fatal("cancelled picker should render nothing")
	}
}

func TestPickerViewShowsOwners(t *testing.T) {
	view := pickerFixture(&fakeAssigner{}).View()
	for _, want := range []string{"Assign events to July", "Review", "June", "7.50"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestCompactSelection(t *testing.T) {
	cases := map[string][]int{
		"":          nil,
		"1":         {1},
		"1-3":       {1, 2, 3},
		"1,3,5-8":   {1, 3, 5, 6, 7, 8},
		"2-3,10-11": {2, 3, 10, 11},
	}
	for want, in := range cases {
		if got := compactSelection(in); got != want {
			t.Fatalf("compactSelection(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEventRowsRoundHoursHalfUp(t *testing.T) {
	start := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	events := []model.CalendarEvent{
		{SourceID: "a", Title: "Ping", Start: start, End: start.Add(27 * time.Second)},
		{SourceID: "b", Title: "Standup", Start: start, End: start.Add(5 * time.Minute)},
	}
	rows := EventRows(events, nil, 1, time.UTC)
	if rows[0].Hours != "0.01" || rows[1].Hours != "0.08" {
		t.Fatalf("unexpected hours %q, %q", rows[0].Hours, rows[1].Hours)
	}
}
