package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandeepkv93/calbill/internal/model"
)

func TestParseSupportedCommands(t *testing.T) {
	cases := []struct {
		in       string
		typeWant Type
	}{
		{"auth", TypeAuth},
		{"logout", TypeLogout},
		{"calendars", TypeCalendars},
		{"sync --start 2025-07-01 --end 2025-07-31", TypeSync},
		{"cycle create July 2025 --start 2025-07-01 --end 2025-07-31 --rate 150", TypeCycleCreate},
		{"cycle list", TypeCycleList},
		{"cycle show 3", TypeCycleShow},
		{"cycle assign 3 --select 1,3,5-8", TypeCycleAssign},
		{"cycle unassign 3 evt-1 evt-2", TypeCycleUnassign},
		{"generate 3 --detailed", TypeGenerate},
		{"invoices list", TypeInvoicesList},
		{"invoices delete #007 --yes", TypeInvoicesDelete},
		{"invoices export ledger.xlsx", TypeInvoicesExport},
		{"profile --full-name Jane", TypeProfile},
		{"--help", TypeHelp},
	}

	for _, tc := range cases {
		cmd, err := Parse(strings.Fields(tc.in))
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.in, err)
		}
		if cmd.Type != tc.typeWant {
			t.Fatalf("parse %q type = %s, want %s", tc.in, cmd.Type, tc.typeWant)
		}
	}
}

func TestParseCycleCreate(t *testing.T) {
	cmd, err := Parse([]string{"cycle", "create", "July 2025", "--start", "2025-07-01", "--end=2025-07-31", "--rate", "150.50", "--client-name", "Acme", "--client-tax-id", "29ABC"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	args := cmd.CycleCreate
	if args.Name != "July 2025" {
		t.Fatalf("unexpected name %q", args.Name)
	}
	if args.Start.Format(model.DateLayout) != "2025-07-01" || args.End.Format(model.DateLayout) != "2025-07-31" {
		t.Fatalf("unexpected range %s..%s", args.Start, args.End)
	}
	if args.Rate.String() != "150.5" {
		t.Fatalf("unexpected rate %s", args.Rate)
	}
	if args.Client.Name != "Acme" || args.Client.TaxID != "29ABC" || args.Client.Address != "" {
		t.Fatalf("unexpected client %+v", args.Client)
	}
}

func TestParseGenerateDefaults(t *testing.T) {
	cmd, err := Parse([]string{"generate", "4"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	g := cmd.Generate
	if g.CycleID != 4 || g.Format != model.FormatSummary || g.DueDays != nil || !g.Rate.IsZero() || !g.InvoiceDate.IsZero() || g.Preview {
		t.Fatalf("unexpected defaults %+v", g)
	}

	cmd, err = Parse([]string{"generate", "--detailed", "--rate", "200", "--due-days", "0", "--invoice-date", "2025-07-31", "--preview", "4"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	g = cmd.Generate
	if g.Format != model.FormatDetailed || g.Rate.String() != "200" || g.DueDays == nil || *g.DueDays != 0 || !g.Preview {
		t.Fatalf("unexpected flags %+v", g)
	}
	if g.InvoiceDate.Format(model.DateLayout) != "2025-07-31" {
		t.Fatalf("unexpected invoice date %s", g.InvoiceDate)
	}
}

func TestParseProfileKeepsUnsetFields(t *testing.T) {
	cmd, err := Parse([]string{"profile", "--address", "1 Main St", "--account-type", "CURRENT"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	stored := model.BillingProfile{FullName: "Jane", Address: "old", AccountType: "SAVING"}
	got := cmd.Profile.Apply(stored)
	if got.FullName != "Jane" || got.Address != "1 Main St" || got.AccountType != "CURRENT" {
		t.Fatalf("unexpected merge %+v", got)
	}

	cmd, err = Parse([]string{"profile"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cmd.Profile.Empty() {
		t.Fatal("bare profile should carry no updates")
	}
}

func TestParseInvalidArguments(t *testing.T) {
	cases := [][]string{
		{"sync", "--start", "2025-07-01"},
		{"sync", "--start", "2025-07-31", "--end", "2025-07-01"},
		{"sync", "--start", "2025-07-01", "--end", "2025-07-31", "--cron", "@hourly"},
		{"cycle"},
		{"cycle", "create", "--start", "2025-07-01", "--end", "2025-07-31", "--rate", "10"},
		{"cycle", "create", "July", "--start", "2025-07-01", "--end", "2025-07-31"},
		{"cycle", "create", "July", "--start", "07/01/2025", "--end", "2025-07-31", "--rate", "10"},
		{"cycle", "create", "July", "--start", "2025-07-01", "--end", "2025-07-31", "--rate", "-5"},
		{"cycle", "show", "abc"},
		{"cycle", "show", "0"},
		{"cycle", "assign"},
		{"cycle", "unassign", "3"},
		{"generate"},
		{"generate", "3", "--due-days", "-1"},
		{"generate", "3", "--bogus"},
		{"invoices", "delete"},
		{"invoices", "export"},
		{"auth", "extra"},
	}
	for _, args := range cases {
		_, err := Parse(args)
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Code != ErrCodeInvalidArgument {
			t.Fatalf("parse %v: expected invalid argument, got %v", args, err)
		}
	}
}

func TestParseDateErrorsUnwrapToValidation(t *testing.T) {
	_, err := Parse([]string{"sync", "--start", "July", "--end", "2025-07-31"})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error in chain, got %v", err)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	for _, args := range [][]string{{"unknown", "do", "x"}, {"cycle", "archive", "1"}, {"invoices", "print"}} {
		_, err := Parse(args)
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Code != ErrCodeUnknownCommand {
			t.Fatalf("parse %v: expected unknown command error, got %v", args, err)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil)
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeEmptyInput {
		t.Fatalf("expected empty input error, got %v", err)
	}
}

func TestExecuteDispatch(t *testing.T) {
	cmd, err := Parse([]string{"cycle", "assign", "7", "--select", "all"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	called := false
	res, err := Execute(context.Background(), cmd, Handlers{
		CycleAssign: func(_ context.Context, a CycleAssignArgs) (Result, error) {
			called = true
			if a.ID != 7 || a.Selection != "all" {
				t.Fatalf("unexpected args: %+v", a)
			}
			return Result{Message: "ok"}, nil
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !called || res.Message != "ok" {
		t.Fatalf("dispatch failed, called=%v res=%+v", called, res)
	}
}

func TestExecuteMissingHandler(t *testing.T) {
	cmd, err := Parse([]string{"invoices", "list"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = Execute(context.Background(), cmd, Handlers{})
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeHandlerMissing {
		t.Fatalf("expected missing handler error, got %v", err)
	}
}

func TestExecuteHelp(t *testing.T) {
	res, err := Execute(context.Background(), Command{Type: TypeHelp}, Handlers{})
	if err != nil || !strings.Contains(res.Message, "cycle assign ID") {
		t.Fatalf("unexpected help result %q %v", res.Message, err)
	}
}
