package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type CycleRowData struct {
	ID     int64
	Name   string
	Period string
	Rate   string
	Client string
}

type EventRowData struct {
	Index    int
	SourceID string
	Title    string
	Start    string
	Hours    string
	// Owner is the name of the cycle the event is assigned to, if any.
	Owner   string
	Current bool
}

type EventsPanelData struct {
	Title  string
	Period string
	Events []EventRowData
	Total  string
}

type CycleDetailData struct {
	Cycle   CycleRowData
	Address string
	TaxID   string
	Events  []EventRowData
	Total   string
}

type InvoiceRowData struct {
	Number string
	Date   string
	Due    string
	Cycle  string
	Client string
	Format string
	Hours  string
	Amount string
	Path   string
}

type SyncSummaryData struct {
	Source    string
	Window    string
	Fetched   int
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
}

type ProfileFieldData struct {
	Label string
	Value string
}

type AssignPickerData struct {
	Cycle       string
	Period      string
	TableView   string
	InputView   string
	ErrorText   string
	StatusText  string
	Available   string
	Selected    int
	SelectedHrs string
}

func RenderCycles(rows []CycleRowData) string {
	if len(rows) == 0 {
		return "No invoice cycles found."
	}
	t := newTable("ID", "Name", "Period", "Rate", "Client")
	for _, r := range rows {
		t.Row(fmt.Sprintf("%d", r.ID), clip(r.Name, 30), r.Period, r.Rate, clip(orNotSet(r.Client), 20))
	}
	return headerStyle.Render("Invoice Cycles") + "\n" + t.Render()
}

func RenderEvents(data EventsPanelData) string {
	var b strings.Builder
	if data.Title != "" {
		b.WriteString(headerStyle.Render(data.Title) + "\n")
	}
	if data.Period != "" {
		b.WriteString("Period: " + data.Period + "\n")
	}
	if len(data.Events) == 0 {
		b.WriteString("(no events)")
		return strings.TrimSpace(b.String())
	}
	b.WriteString(eventsTable(data.Events).Render())
	if data.Total != "" {
		b.WriteString("\nTotal: " + data.Total + " hours")
	}
	return strings.TrimSpace(b.String())
}

func RenderCycleDetail(data CycleDetailData) string {
	var b strings.Builder
	c := data.Cycle
	b.WriteString(headerStyle.Render(fmt.Sprintf("Cycle %d: %s", c.ID, c.Name)) + "\n")
	b.WriteString(fmt.Sprintf("Period: %s\n", c.Period))
	b.WriteString(fmt.Sprintf("Rate:   %s\n", c.Rate))
	b.WriteString(fmt.Sprintf("Client: %s\n", orNotSet(c.Client)))
	if data.Address != "" {
		b.WriteString(fmt.Sprintf("        %s\n", strings.ReplaceAll(data.Address, `\n`, ", ")))
	}
	if data.TaxID != "" {
		b.WriteString(fmt.Sprintf("Tax ID: %s\n", data.TaxID))
	}
	b.WriteString("\n")
	b.WriteString(RenderEvents(EventsPanelData{Events: data.Events, Total: data.Total}))
	return strings.TrimSpace(b.String())
}

func RenderInvoices(rows []InvoiceRowData) string {
	if len(rows) == 0 {
		return "No invoices generated yet."
	}
	t := newTable("No.", "Date", "Due", "Cycle", "Client", "Format", "Hours", "Amount")
	for _, r := range rows {
		t.Row(r.Number, r.Date, r.Due, clip(r.Cycle, 24), clip(orNotSet(r.Client), 20), r.Format, r.Hours, r.Amount)
	}
	return headerStyle.Render("Invoices") + "\n" + t.Render()
}

func RenderSyncSummary(data SyncSummaryData) string {
	var b strings.Builder
	b.WriteString(statusStyle.Render(fmt.Sprintf("Synced %d events from %s (%s)", data.Fetched, data.Source, data.Window)) + "\n")
	b.WriteString(fmt.Sprintf("inserted: %d  updated: %d  unchanged: %d", data.Inserted, data.Updated, data.Unchanged))
	if data.Skipped > 0 {
		b.WriteString(fmt.Sprintf("  skipped: %d", data.Skipped))
	}
	return b.String()
}

func RenderProfile(fields []ProfileFieldData) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Billing Profile") + "\n")
	for _, f := range fields {
		b.WriteString(fmt.Sprintf("%-20s : %s\n", f.Label, orNotSet(strings.ReplaceAll(f.Value, "\n", ", "))))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderAssignPicker(data AssignPickerData) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Assign events to "+data.Cycle) + "\n")
	b.WriteString("Period: " + data.Period + "\n")
	b.WriteString(panelStyle.Render(data.TableView) + "\n")
	b.WriteString(fmt.Sprintf("Available: %s hours  Selected: %d (%s hours)\n", data.Available, data.Selected, data.SelectedHrs))
	b.WriteString(data.InputView + "\n")
	if data.ErrorText != "" {
		b.WriteString(errorStyle.Render("error: "+data.ErrorText) + "\n")
	}
	if data.StatusText != "" {
		b.WriteString(statusStyle.Render(data.StatusText) + "\n")
	}
	b.WriteString(footerStyle.Render("[space]toggle [a]all [enter]assign [tab]type selection [esc]cancel"))
	return b.String()
}

func eventsTable(rows []EventRowData) *table.Table {
	t := newTable("#", "Title", "Start", "Hours", "Cycle")
	for _, r := range rows {
		owner := r.Owner
		if r.Current {
			owner = "* " + owner
		}
		t.Row(fmt.Sprintf("%d", r.Index), clip(r.Title, 40), r.Start, r.Hours, owner)
	}
	return t
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(footerStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orNotSet(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not set"
	}
	return s
}

type CalendarRowData struct {
	ID      string
	Summary string
	Primary bool
}

func RenderCalendars(rows []CalendarRowData) string {
	if len(rows) == 0 {
		return "No calendars found."
	}
	t := newTable("ID", "Name", "")
	for _, r := range rows {
		mark := ""
		if r.Primary {
			mark = "primary"
		}
		t.Row(r.ID, r.Summary, mark)
	}
	return headerStyle.Render("Calendars") + "\n" + t.Render()
}
