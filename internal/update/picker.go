package update

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/sandeepkv93/calbill/internal/cycle"
	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/views"
)

const startLayout = "2006-01-02 15:04"

type Assigner interface {
	Assign(ctx context.Context, cycleID int64, candidates []model.CalendarEvent, expr string) (cycle.AssignResult, error)
}

type StatusBar struct {
	Text    string
	IsError bool
}

// PickerConfig describes one interactive assignment session.
type PickerConfig struct {
	Cycle      model.InvoiceCycle
	Candidates []model.CalendarEvent
	// CycleNames maps cycle ids to names for the owner column.
	CycleNames map[int64]string
	Location   *time.Location
}

// AssignPicker lets the user toggle candidates or type a selection
// expression, then assigns the picked events to the cycle.
type AssignPicker struct {
	ctx        context.Context
	assigner   Assigner
	cfg        PickerConfig
	selected   map[int]bool
	typing     bool
	eventTable table.Model
	exprInput  textinput.Model

	Status    StatusBar
	Result    *cycle.AssignResult
	Cancelled bool
	LastError error
	Quitting  bool
}

func NewAssignPicker(ctx context.Context, assigner Assigner, cfg PickerConfig) AssignPicker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	p := AssignPicker{
		ctx:      ctx,
		assigner: assigner,
		cfg:      cfg,
		selected: make(map[int]bool),
	}

	cols := []table.Column{
		{Title: " ", Width: 3},
		{Title: "#", Width: 4},
		{Title: "Title", Width: 36},
		{Title: "Start", Width: 17},
		{Title: "Hours", Width: 6},
		{Title: "Cycle", Width: 16},
	}
	height := len(cfg.Candidates)
	if height > 15 {
		height = 15
	}
	if height < 3 {
		height = 3
	}
	p.eventTable = table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(height))

	p.exprInput = textinput.New()
	p.exprInput.Prompt = "select> "
	p.exprInput.Placeholder = "e.g. 1,3,5-8 or all"
	p.exprInput.CharLimit = 256
	p.exprInput.Width = 40

	p.syncRows()
	return p
}

func (p AssignPicker) Init() tea.Cmd {
	return nil
}

func (p AssignPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	if key.String() == "ctrl+c" {
		return p.cancel()
	}
	if p.typing {
		return p.handleInputKey(key)
	}

	switch key.String() {
	case "esc", "q":
		return p.cancel()
	case " ":
		idx := p.eventTable.Cursor() + 1
		if idx >= 1 && idx <= len(p.cfg.Candidates) {
			p.selected[idx] = !p.selected[idx]
			if !p.selected[idx] {
				delete(p.selected, idx)
			}
		}
		p.syncRows()
		return p, nil
	case "a":
		if len(p.selected) == len(p.cfg.Candidates) {
			p.selected = make(map[int]bool)
		} else {
			for i := 1; i <= len(p.cfg.Candidates); i++ {
				p.selected[i] = true
			}
		}
		p.syncRows()
		return p, nil
	case "tab", "/":
		p.typing = true
		p.exprInput.SetValue(compactSelection(p.selectedIndices()))
		p.exprInput.Focus()
		return p, nil
	case "enter":
		if len(p.selected) == 0 {
			p.Status = StatusBar{Text: "nothing selected: press space to toggle or tab to type a selection", IsError: true}
			return p, nil
		}
		return p.submit(compactSelection(p.selectedIndices()))
	default:
		var cmd tea.Cmd
		p.eventTable, cmd = p.eventTable.Update(key)
		return p, cmd
	}
}

func (p AssignPicker) handleInputKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc", "tab":
		p.typing = false
		p.exprInput.Blur()
		return p, nil
	case "enter":
		return p.submit(p.exprInput.Value())
	default:
		if key.Type == tea.KeyRunes {
			p.exprInput.SetValue(p.exprInput.Value() + string(key.Runes))
			return p, nil
		}
		var cmd tea.Cmd
		p.exprInput, cmd = p.exprInput.Update(key)
		return p, cmd
	}
}

func (p AssignPicker) submit(expr string) (tea.Model, tea.Cmd) {
	res, err := p.assigner.Assign(p.ctx, p.cfg.Cycle.ID, p.cfg.Candidates, expr)
	if err == nil {
		p.Result = &res
		p.Status = StatusBar{Text: fmt.Sprintf("assigned %d events (%s hours)", len(res.Assigned), res.Hours.StringFixed(2))}
		p.Quitting = true
		return p, tea.Quit
	}

	var conflict *model.ConflictError
	switch {
	case errors.Is(err, model.ErrSelection), errors.Is(err, model.ErrValidation):
		p.Status = StatusBar{Text: err.Error(), IsError: true}
		return p, nil
	case errors.As(err, &conflict):
		p.Status = StatusBar{Text: p.describeConflict(conflict), IsError: true}
		return p, nil
	default:
		p.LastError = err
		p.Quitting = true
		return p, tea.Quit
	}
}

func (p AssignPicker) cancel() (tea.Model, tea.Cmd) {
	p.Cancelled = true
	p.Quitting = true
	return p, tea.Quit
}

func (p AssignPicker) describeConflict(err *model.ConflictError) string {
	parts := make([]string, 0, len(err.Conflicts))
	for _, c := range err.Conflicts {
		owner := p.cfg.CycleNames[c.CycleID]
		if owner == "" {
			owner = fmt.Sprintf("cycle %d", c.CycleID)
		}
		parts = append(parts, fmt.Sprintf("%q belongs to %s", c.Title, owner))
	}
	return "nothing assigned: " + strings.Join(parts, "; ")
}

func (p AssignPicker) View() string {
	if p.Quitting {
		return ""
	}
	c := p.cfg.Cycle
	input := "press tab to type a selection"
	if p.typing {
		input = p.exprInput.View()
	}
	data := views.AssignPickerData{
		Cycle:       c.Name,
		Period:      fmt.Sprintf("%s to %s", c.RangeStart.Format(model.DateLayout), c.RangeEnd.Format(model.DateLayout)),
		TableView:   p.eventTable.View(),
		InputView:   input,
		Available:   model.RoundedHours(cycle.TotalDuration(p.cfg.Candidates), 2).StringFixed(2),
		Selected:    len(p.selected),
		SelectedHrs: p.selectedHours().StringFixed(2),
	}
	if p.Status.IsError {
		data.ErrorText = p.Status.Text
	} else {
		data.StatusText = p.Status.Text
	}
	return views.RenderAssignPicker(data)
}

// RunAssignPicker runs the picker on the terminal until the user assigns or
// cancels.
func RunAssignPicker(ctx context.Context, assigner Assigner, cfg PickerConfig, opts ...tea.ProgramOption) (AssignPicker, error) {
	opts = append(opts, tea.WithContext(ctx))
	final, err := tea.NewProgram(NewAssignPicker(ctx, assigner, cfg), opts...).Run()
	if err != nil {
		return AssignPicker{}, fmt.Errorf("assign picker: %w", err)
	}
	return final.(AssignPicker), nil
}

// Selected reports the 1-based indices currently toggled on.
func (p AssignPicker) Selected() []int {
	return p.selectedIndices()
}

func (p AssignPicker) Typing() bool {
	return p.typing
}

func (p AssignPicker) selectedIndices() []int {
	out := make([]int, 0, len(p.selected))
	for i, on := range p.selected {
		if on {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func (p AssignPicker) selectedHours() decimal.Decimal {
	picked := make([]model.CalendarEvent, 0, len(p.selected))
	for _, i := range p.selectedIndices() {
		picked = append(picked, p.cfg.Candidates[i-1])
	}
	return model.RoundedHours(cycle.TotalDuration(picked), 2)
}

func (p *AssignPicker) syncRows() {
	rows := make([]table.Row, 0, len(p.cfg.Candidates))
	for _, r := range EventRows(p.cfg.Candidates, p.cfg.CycleNames, p.cfg.Cycle.ID, p.cfg.Location) {
		mark := "[ ]"
		if p.selected[r.Index] {
			mark = "[x]"
		}
		owner := r.Owner
		if r.Current {
			owner = "* " + owner
		}
		rows = append(rows, table.Row{mark, strconv.Itoa(r.Index), r.Title, r.Start, r.Hours, owner})
	}
	p.eventTable.SetRows(rows)
}

// EventRows numbers events from 1 in the given order and resolves the owning
// cycle's name. current marks events owned by that cycle.
func EventRows(events []model.CalendarEvent, cycleNames map[int64]string, current int64, loc *time.Location) []views.EventRowData {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]views.EventRowData, 0, len(events))
	for i, ev := range events {
		row := views.EventRowData{
			Index:    i + 1,
			SourceID: ev.SourceID,
			Title:    ev.Title,
			Start:    ev.Start.In(loc).Format(startLayout),
			Hours:    model.RoundedHours(ev.Duration(), 2).StringFixed(2),
		}
		if ev.CycleID != nil {
			row.Owner = cycleNames[*ev.CycleID]
			if row.Owner == "" {
				row.Owner = fmt.Sprintf("#%d", *ev.CycleID)
			}
			row.Current = *ev.CycleID == current
		}
		rows = append(rows, row)
	}
	return rows
}

// compactSelection renders sorted indices as a selection expression,
// collapsing runs into ranges.
func compactSelection(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, 0)
	start, prev := indices[0], indices[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, i := range indices[1:] {
		if i == prev+1 {
			prev = i
			continue
		}
		flush()
		start, prev = i, i
	}
	flush()
	return strings.Join(parts, ",")
}
