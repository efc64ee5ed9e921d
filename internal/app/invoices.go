package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sandeepkv93/calbill/internal/commands"
	"github.com/sandeepkv93/calbill/internal/export"
	"github.com/sandeepkv93/calbill/internal/invoice"
	"github.com/sandeepkv93/calbill/internal/model"
	"github.com/sandeepkv93/calbill/internal/render"
	"github.com/sandeepkv93/calbill/internal/storage"
	"github.com/sandeepkv93/calbill/internal/views"
)

func (a *App) generate(ctx context.Context, args commands.GenerateArgs) (commands.Result, error) {
	req := invoice.Request{
		CycleID:     args.CycleID,
		Format:      args.Format,
		Rate:        args.Rate,
		InvoiceDate: args.InvoiceDate,
		DueDays:     a.cfg.DueDays,
	}
	if args.DueDays != nil {
		req.DueDays = *args.DueDays
	}

	if args.Preview {
		m, err := a.generator.Prepare(ctx, req)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{Message: render.Terminal(m) + "\n\n" + views.RenderNotice("warn", "Preview only, nothing was recorded.")}, nil
	}

	m, path, err := a.generator.Generate(ctx, req)
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: views.RenderNotice("ok", fmt.Sprintf("Invoice %s generated: %s (%s hours, %s %s)",
		m.DisplayNumber(), path, m.TotalHours.StringFixed(2), render.Money(m.Total), m.Currency))}, nil
}

func (a *App) invoicesList(ctx context.Context) (commands.Result, error) {
	records, err := a.store.ListInvoices(ctx)
	if err != nil {
		return commands.Result{}, err
	}
	rows := make([]views.InvoiceRowData, 0, len(records))
	for _, r := range records {
		rows = append(rows, invoiceRow(r))
	}
	msg := views.RenderInvoices(rows)
	if len(rows) > 0 {
		msg += fmt.Sprintf("\nTotal invoices: %d", len(rows))
	}
	return commands.Result{Message: msg}, nil
}

// invoicesDelete removes the ledger row and the rendered document.
func (a *App) invoicesDelete(ctx context.Context, args commands.InvoiceArgs) (commands.Result, error) {
	label := invoice.FormatNumber(args.Number)
	rec, err := a.store.GetInvoice(ctx, args.Number)
	if errors.Is(err, storage.ErrNotFound) {
		return commands.Result{}, model.Invalid("invoice", "invoice %s not found", label)
	}
	if err != nil {
		return commands.Result{}, err
	}

	fmt.Fprintln(a.out, views.RenderInvoices([]views.InvoiceRowData{invoiceRow(rec)}))
	if !args.Yes {
		fmt.Fprintln(a.out, views.RenderNotice("warn", "This deletes both the ledger entry and the PDF file."))
		if !a.confirm(fmt.Sprintf("Delete invoice %s?", label)) {
			return commands.Result{Message: "Operation cancelled."}, nil
		}
	}

	if err := a.store.DeleteInvoice(ctx, args.Number); err != nil {
		return commands.Result{}, err
	}
	if rec.DocumentPath != "" {
		if err := os.Remove(rec.DocumentPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("could not remove invoice document", zap.String("path", rec.DocumentPath), zap.Error(err))
		}
	}
	return commands.Result{Message: views.RenderNotice("ok", fmt.Sprintf("Invoice %s deleted.", label))}, nil
}

func (a *App) invoicesExport(ctx context.Context, args commands.ExportArgs) (commands.Result, error) {
	records, err := a.store.ListInvoices(ctx)
	if err != nil {
		return commands.Result{}, err
	}
	cycles, err := a.cycles.List(ctx)
	if err != nil {
		return commands.Result{}, err
	}
	if len(records) == 0 && len(cycles) == 0 {
		return commands.Result{}, export.ErrNothingToExport
	}

	if dir := filepath.Dir(args.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return commands.Result{}, err
		}
	}
	tmp := args.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return commands.Result{}, fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := export.WriteLedger(f, records, cycles); err != nil {
		f.Close()
		os.Remove(tmp)
		return commands.Result{}, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return commands.Result{}, err
	}
	if err := os.Rename(tmp, args.Path); err != nil {
		os.Remove(tmp)
		return commands.Result{}, err
	}
	return commands.Result{Message: views.RenderNotice("ok", fmt.Sprintf("Exported %d invoices and %d cycles to %s", len(records), len(cycles), args.Path))}, nil
}

func invoiceRow(r model.InvoiceRecord) views.InvoiceRowData {
	return views.InvoiceRowData{
		Number: invoice.FormatNumber(r.Number),
		Date:   r.InvoiceDate.Format(model.DateLayout),
		Due:    r.DueDate.Format(model.DateLayout),
		Cycle:  r.CycleName,
		Client: r.ClientName,
		Format: string(r.Format),
		Hours:  r.TotalHours.StringFixed(2),
		Amount: render.Money(r.Total) + " " + r.Currency,
		Path:   r.DocumentPath,
	}
}

func (a *App) profile(ctx context.Context, args commands.ProfileArgs) (commands.Result, error) {
	current, err := a.store.GetProfile(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return commands.Result{}, err
	}
	if args.Empty() {
		return commands.Result{Message: views.RenderProfile(profileFields(current))}, nil
	}

	next := args.Apply(current)
	if err := next.Validate(); err != nil {
		return commands.Result{}, err
	}
	if err := a.store.SaveProfile(ctx, next); err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: views.RenderProfile(profileFields(next)) + "\n" + views.RenderNotice("ok", "Profile updated successfully")}, nil
}

func profileFields(p model.BillingProfile) []views.ProfileFieldData {
	return []views.ProfileFieldData{
		{Label: "Full Name", Value: p.FullName},
		{Label: "Address", Value: p.Address},
		{Label: "Tax ID", Value: p.TaxID},
		{Label: "Payment", Value: p.PaymentInstructions},
		{Label: "Account Name", Value: p.AccountName},
		{Label: "Account Number", Value: p.AccountNumber},
		{Label: "Bank Code", Value: p.BankCode},
		{Label: "Bank Name", Value: p.BankName},
		{Label: "Account Type", Value: p.AccountType},
	}
}
