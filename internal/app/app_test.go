package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/commands"
	"github.com/sandeepkv93/calbill/internal/config"
	"github.com/sandeepkv93/calbill/internal/invoice"
	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/render"
	"github.com/sandeepkv93/calbill/internal/update"
)

const julyICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calbill//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:evt-1\r\nDTSTAMP:20250701T000000Z\r\nDTSTART:20250701T090000Z\r\nDTEND:20250701T110000Z\r\nSUMMARY:Architecture review\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:evt-2\r\nDTSTAMP:20250701T000000Z\r\nDTSTART:20250702T090000Z\r\nDTEND:20250702T103000Z\r\nSUMMARY:Pairing\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:evt-3\r\nDTSTAMP:20250701T000000Z\r\nDTSTART:20250720T090000Z\r\nDTEND:20250720T130000Z\r\nSUMMARY:Workshop\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type fileRenderer struct {
	dir    string
	models []invoice.Model
}

func (r *fileRenderer) Render(_ context.Context, m invoice.Model) (string, error) {
	r.models = append(r.models, m)
	path := filepath.Join(r.dir, render.FileName(m))
	return path, os.WriteFile(path, []byte("%PDF-1.4"), 0o644)
}

type harness struct {
	app      *App
	out      *bytes.Buffer
	renderer *fileRenderer
	dir      string
	ics      string
}

func newHarness(t *testing.T, input string, picker PickerFunc) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "data", "calbill.db")
	cfg.CredentialsDir = filepath.Join(dir, "credentials")
	cfg.InvoicesDir = filepath.Join(dir, "invoices")

	ics := filepath.Join(dir, "july.ics")
	if err := os.WriteFile(ics, []byte(julyICS), 0o600); err != nil {
		t.Fatalf("write ics: %v", err)
	}
	h := &harness{out: &bytes.Buffer{}, renderer: &fileRenderer{dir: dir}, dir: dir, ics: ics}
	app, err := Open(cfg, zap.NewNop(), Options{
		In:       strings.NewReader(input),
		Out:      h.out,
		Renderer: h.renderer,
		Clock:    func() time.Time { return time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC) },
		Picker:   picker,
	})
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	h.app = app
	return h
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, err := commands.Parse(args)
	if err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	res, err := commands.Execute(context.Background(), cmd, h.app.Handlers())
	return res.Message, err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	msg, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return msg
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	h.mustRun(t, "sync", "--start", "2025-07-01", "--end", "2025-07-31", "--ics", h.ics)
	h.mustRun(t, "cycle", "create", "July 2025", "--start", "2025-07-01", "--end", "2025-07-31", "--rate", "150", "--client-name", "Acme")
	h.mustRun(t, "profile", "--full-name", "Jane Doe", "--address", "1 Main St", "--account-number", "123456")
}

func TestSyncIsIdempotent(t *testing.T) {
	h := newHarness(t, "", nil)
	first := h.mustRun(t, "sync", "--start", "2025-07-01", "--end", "2025-07-31", "--ics", h.ics)
	if !strings.Contains(first, "inserted: 3") {
		t.Fatalf("unexpected first sync:\n%s", first)
	}
	second := h.mustRun(t, "sync", "--start", "2025-07-01", "--end", "2025-07-31", "--ics", h.ics)
	if !strings.Contains(second, "inserted: 0") || !strings.Contains(second, "unchanged: 3") {
		t.Fatalf("unexpected second sync:\n%s", second)
	}
}

func TestSyncWatchStopsWithContext(t *testing.T) {
	h := newHarness(t, "", nil)
	cmd, err := commands.Parse([]string{"sync", "--start", "2025-07-01", "--end", "2025-07-31", "--ics", h.ics, "--watch", "--cron", "@hourly"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := commands.Execute(ctx, cmd, h.app.Handlers())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if res.Message != "Watch stopped after 1 runs (0 failed)." {
		t.Fatalf("unexpected watch result %q", res.Message)
	}
	if !strings.Contains(h.out.String(), "inserted: 3") {
		t.Fatalf("first run summary missing:\n%s", h.out.String())
	}
}

func TestAssignGenerateAndLedger(t *testing.T) {
	h := newHarness(t, "y\n", nil)
	h.seed(t)

	msg := h.mustRun(t, "cycle", "assign", "1", "--select", "all")
	if !strings.Contains(msg, "Assigned 3 events (7.50 hours)") {
		t.Fatalf("unexpected assign message %q", msg)
	}
	show := h.mustRun(t, "cycle", "show", "1")
	if !strings.Contains(show, "Total: 7.50 hours") || !strings.Contains(show, "Workshop") {
		t.Fatalf("unexpected cycle detail:\n%s", show)
	}

	msg = h.mustRun(t, "generate", "1", "--detailed", "--invoice-date", "2025-07-31")
	if !strings.Contains(msg, "#001") || !strings.Contains(msg, "1,125.00 INR") {
		t.Fatalf("unexpected generate message %q", msg)
	}
	m := h.renderer.models[0]
	if m.DueDate.Format(model.DateLayout) != "2025-08-30" {
		t.Fatalf("unexpected due date %s", m.DueDate)
	}
	amounts := make([]string, 0, len(m.Lines))
	for _, line := range m.Lines {
		amounts = append(amounts, line.Amount.StringFixed(2))
	}
	if strings.Join(amounts, ",") != "300.00,225.00,600.00" {
		t.Fatalf("unexpected line amounts %v", amounts)
	}

	list := h.mustRun(t, "invoices", "list")
	if !strings.Contains(list, "#001") || !strings.Contains(list, "Total invoices: 1") {
		t.Fatalf("unexpected invoice list:\n%s", list)
	}

	ledger := filepath.Join(h.dir, "out", "ledger.xlsx")
	h.mustRun(t, "invoices", "export", ledger)
	if info, err := os.Stat(ledger); err != nil || info.Size() == 0 {
		t.Fatalf("ledger not written: %v", err)
	}

	pdf := filepath.Join(h.dir, render.FileName(m))
	msg = h.mustRun(t, "invoices", "delete", "1")
	if !strings.Contains(msg, "Invoice #001 deleted.") {
		t.Fatalf("unexpected delete message %q", msg)
	}
	if _, err := os.Stat(pdf); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pdf should be removed, stat err = %v", err)
	}

	msg = h.mustRun(t, "generate", "1")
	if !strings.Contains(msg, "#001") {
		t.Fatalf("number should be reused once the ledger is empty, got %q", msg)
	}
}

func TestGeneratePreviewRecordsNothing(t *testing.T) {
	h := newHarness(t, "", nil)
	h.seed(t)
	h.mustRun(t, "cycle", "assign", "1", "--select", "1-2")

	msg := h.mustRun(t, "generate", "1", "--preview", "--rate", "200")
	if !strings.Contains(msg, "Preview only") {
		t.Fatalf("unexpected preview output:\n%s", msg)
	}
	if len(h.renderer.models) != 0 {
		t.Fatal("preview should not render a document")
	}
	if list := h.mustRun(t, "invoices", "list"); list != "No invoices generated yet." {
		t.Fatalf("preview should not touch the ledger, got:\n%s", list)
	}
}

func TestAssignConflictAcrossCycles(t *testing.T) {
	h := newHarness(t, "", nil)
	h.seed(t)
	h.mustRun(t, "cycle", "assign", "1", "--select", "all")
	h.mustRun(t, "cycle", "create", "Late July", "--start", "2025-07-15", "--end", "2025-07-31", "--rate", "150")

	_, err := h.run(t, "cycle", "assign", "2", "--select", "1")
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := h.run(t, "cycle", "unassign", "2", "evt-3"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("unassign of a foreign event should fail validation, got %v", err)
	}
	h.mustRun(t, "cycle", "unassign", "1", "evt-3")
	msg := h.mustRun(t, "cycle", "assign", "2", "--select", "1")
	if !strings.Contains(msg, "Assigned 1 events (4.00 hours)") {
		t.Fatalf("unexpected assign message %q", msg)
	}
}

func TestAssignUsesPickerWithoutSelection(t *testing.T) {
	var seen update.PickerConfig
	picker := func(ctx context.Context, a update.Assigner, cfg update.PickerConfig) (update.AssignPicker, error) {
		seen = cfg
		res, err := a.Assign(ctx, cfg.Cycle.ID, cfg.Candidates, "2")
		if err != nil {
			return update.AssignPicker{}, err
		}
		return update.AssignPicker{Result: &res}, nil
	}
	h := newHarness(t, "", picker)
	h.seed(t)

	msg := h.mustRun(t, "cycle", "assign", "1")
	if len(seen.Candidates) != 3 || seen.CycleNames[1] != "July 2025" {
		t.Fatalf("unexpected picker config %+v", seen)
	}
	if !strings.Contains(msg, "Assigned 1 events (1.50 hours)") {
		t.Fatalf("unexpected assign message %q", msg)
	}
}

func TestDeleteInvoiceNeedsConfirmation(t *testing.T) {
	h := newHarness(t, "n\n", nil)
	h.seed(t)
	h.mustRun(t, "cycle", "assign", "1", "--select", "all")
	h.mustRun(t, "generate", "1")

	msg := h.mustRun(t, "invoices", "delete", "1")
	if msg != "Operation cancelled." {
		t.Fatalf("unexpected message %q", msg)
	}
	if list := h.mustRun(t, "invoices", "list"); !strings.Contains(list, "#001") {
		t.Fatalf("invoice should still exist:\n%s", list)
	}
	if _, err := h.run(t, "invoices", "delete", "9", "--yes"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected not found validation error, got %v", err)
	}
}

func TestProfileMergeAndValidation(t *testing.T) {
	h := newHarness(t, "", nil)
	if _, err := h.run(t, "profile", "--full-name", "Jane"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("profile without address should be rejected, got %v", err)
	}
	h.mustRun(t, "profile", "--full-name", "Jane", "--address", "1 Main St")
	h.mustRun(t, "profile", "--bank-name", "First Bank")

	view := h.mustRun(t, "profile")
	for _, want := range []string{"Jane", "1 Main St", "First Bank"} {
		if !strings.Contains(view, want) {
			t.Fatalf("profile view missing %q:\n%s", want, view)
		}
	}
}

func TestGenerateWithoutProfile(t *testing.T) {
	h := newHarness(t, "", nil)
	h.mustRun(t, "sync", "--start", "2025-07-01", "--end", "2025-07-31", "--ics", h.ics)
	h.mustRun(t, "cycle", "create", "July", "--start", "2025-07-01", "--end", "2025-07-31", "--rate", "150")
	h.mustRun(t, "cycle", "assign", "1", "--select", "all")
	if _, err := h.run(t, "generate", "1"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error without profile, got %v", err)
	}
}

func TestExportWithEmptyLedger(t *testing.T) {
	h := newHarness(t, "", nil)
	if _, err := h.run(t, "invoices", "export", filepath.Join(h.dir, "ledger.xlsx")); err == nil {
		t.Fatal("expected nothing-to-export error")
	}
}
