package views

import (
	"strings"
	"testing"
)

func TestRenderCyclesEmptyAndRows(t *testing.T) {
	if got := RenderCycles(nil); got != "No invoice cycles found." {
		t.Fatalf("unexpected empty render %q", got)
	}
	out := RenderCycles([]CycleRowData{
		{ID: 1, Name: "July 2025", Period: "2025-07-01 to 2025-07-31", Rate: "150 INR/h"},
	})
	for _, want := range []string{"Invoice Cycles", "July 2025", "2025-07-01 to 2025-07-31", "150 INR/h", "Not set"} {
		if !strings.Contains(out, want) {
			t.Fatalf("cycles table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEventsMarksCurrentOwner(t *testing.T) {
	out := RenderEvents(EventsPanelData{
		Title: "Candidates",
		Events: []EventRowData{
			{Index: 1, Title: "Design review", Start: "2025-07-01 09:00", Hours: "2.50", Owner: "July", Current: true},
			{Index: 2, Title: "Pairing", Start: "2025-07-02 10:00", Hours: "1.00", Owner: "June"},
		},
		Total: "3.50",
	})
	for _, want := range []string{"* July", "June", "Total: 3.50 hours", "Design review"} {
		if !strings.Contains(out, want) {
			t.Fatalf("events table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "* June") {
		t.Fatalf("foreign owner should not be marked:\n%s", out)
	}
	if got := RenderEvents(EventsPanelData{}); got != "(no events)" {
		t.Fatalf("unexpected empty render %q", got)
	}
}

func TestRenderInvoicesAndSync(t *testing.T) {
	out := RenderInvoices([]InvoiceRowData{{Number: "#001", Date: "2025-07-31", Cycle: "July", Format: "summary", Hours: "7.50", Amount: "1,125.00 INR"}})
	if !strings.Contains(out, "#001") || !strings.Contains(out, "1,125.00 INR") {
		t.Fatalf("unexpected invoices render:\n%s", out)
	}
	sync := RenderSyncSummary(SyncSummaryData{Source: "primary", Window: "2025-07-01..2025-07-31", Fetched: 3, Inserted: 2, Unchanged: 1, Skipped: 1})
	for _, want := range []string{"Synced 3 events from primary", "inserted: 2", "unchanged: 1", "skipped: 1"} {
		if !strings.Contains(sync, want) {
			t.Fatalf("sync summary missing %q:\n%s", want, sync)
		}
	}
}

func TestClip(t *testing.T) {
	if got := clip("abcdef", 4); got != "abc…" {
		t.Fatalf("unexpected clip %q", got)
	}
	if got := clip("abc", 4); got != "abc" {
		t.Fatalf("unexpected clip %q", got)
	}
}

func TestRenderNoticeLevels(t *testing.T) {
	if RenderNotice("ok", "") != "" {
		t.Fatal("empty body should render nothing")
	}
	if !strings.Contains(RenderNotice("error", "boom"), "boom") {
		t.Fatal("error notice lost its body")
	}
}
