package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sandeepkv93/calbill/internal/model"
)

type eventRow struct {
	SourceID string        `db:"source_id"`
	Title    string        `db:"title"`
	StartAt  string        `db:"start_at"`
	EndAt    string        `db:"end_at"`
	CycleID  sql.NullInt64 `db:"cycle_id"`
}

func (r eventRow) toModel() (model.CalendarEvent, error) {
	start, err := parseRequiredTime(r.StartAt)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %s start: %w", r.SourceID, err)
	}
	end, err := parseRequiredTime(r.EndAt)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %s end: %w", r.SourceID, err)
	}
	out := model.CalendarEvent{
		SourceID: r.SourceID,
		Title:    r.Title,
		Start:    start,
		End:      end,
	}
	if r.CycleID.Valid {
		id := r.CycleID.Int64
		out.CycleID = &id
	}
	return out, nil
}

type cycleRow struct {
	ID            int64  `db:"id"`
	Name          string `db:"name"`
	RangeStart    string `db:"range_start"`
	RangeEnd      string `db:"range_end"`
	Rate          string `db:"rate"`
	ClientName    string `db:"client_name"`
	ClientAddress string `db:"client_address"`
	ClientTaxID   string `db:"client_tax_id"`
	CreatedAt     string `db:"created_at"`
}

func (r cycleRow) toModel() (model.InvoiceCycle, error) {
	start, err := time.Parse(model.DateLayout, r.RangeStart)
	if err != nil {
		return model.InvoiceCycle{}, fmt.Errorf("cycle %d range_start: %w", r.ID, err)
	}
	end, err := time.Parse(model.DateLayout, r.RangeEnd)
	if err != nil {
		return model.InvoiceCycle{}, fmt.Errorf("cycle %d range_end: %w", r.ID, err)
	}
	rate, err := decimal.NewFromString(r.Rate)
	if err != nil {
		return model.InvoiceCycle{}, fmt.Errorf("cycle %d rate: %w", r.ID, err)
	}
	created, err := parseRequiredTime(r.CreatedAt)
	if err != nil {
		return model.InvoiceCycle{}, fmt.Errorf("cycle %d created_at: %w", r.ID, err)
	}
	return model.InvoiceCycle{
		ID:         r.ID,
		Name:       r.Name,
		RangeStart: start,
		RangeEnd:   end,
		Rate:       rate,
		Client: model.ClientInfo{
			Name:    r.ClientName,
			Address: r.ClientAddress,
			TaxID:   r.ClientTaxID,
		},
		CreatedAt: created,
	}, nil
}

type profileRow struct {
	FullName            string `db:"full_name"`
	Address             string `db:"address"`
	TaxID               string `db:"tax_id"`
	PaymentInstructions string `db:"payment_instructions"`
	AccountName         string `db:"account_name"`
	AccountNumber       string `db:"account_number"`
	BankCode            string `db:"bank_code"`
	BankName            string `db:"bank_name"`
	AccountType         string `db:"account_type"`
	UpdatedAt           string `db:"updated_at"`
}

func (r profileRow) toModel() (model.BillingProfile, error) {
	updated, err := parseRequiredTime(r.UpdatedAt)
	if err != nil {
		return model.BillingProfile{}, fmt.Errorf("profile updated_at: %w", err)
	}
	return model.BillingProfile{
		FullName:            r.FullName,
		Address:             r.Address,
		TaxID:               r.TaxID,
		PaymentInstructions: r.PaymentInstructions,
		AccountName:         r.AccountName,
		AccountNumber:       r.AccountNumber,
		BankCode:            r.BankCode,
		BankName:            r.BankName,
		AccountType:         r.AccountType,
		UpdatedAt:           updated,
	}, nil
}

type invoiceRow struct {
	Number       int64          `db:"number"`
	CycleID      int64          `db:"cycle_id"`
	CycleName    sql.NullString `db:"cycle_name"`
	ClientName   sql.NullString `db:"client_name"`
	Format       string         `db:"format"`
	InvoiceDate  string         `db:"invoice_date"`
	DueDate      string         `db:"due_date"`
	TotalHours   string         `db:"total_hours"`
	Rate         string         `db:"rate"`
	Total        string         `db:"total"`
	Currency     string         `db:"currency"`
	DocumentPath string         `db:"document_path"`
	GeneratedAt  string         `db:"generated_at"`
}

func (r invoiceRow) toModel() (model.InvoiceRecord, error) {
	out := model.InvoiceRecord{
		Number:       r.Number,
		CycleID:      r.CycleID,
		CycleName:    r.CycleName.String,
		ClientName:   r.ClientName.String,
		Format:       model.InvoiceFormat(r.Format),
		Currency:     r.Currency,
		DocumentPath: r.DocumentPath,
	}
	var err error
	if out.InvoiceDate, err = time.Parse(model.DateLayout, r.InvoiceDate); err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("invoice %d invoice_date: %w", r.Number, err)
	}
	if out.DueDate, err = time.Parse(model.DateLayout, r.DueDate); err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("invoice %d due_date: %w", r.Number, err)
	}
	if out.TotalHours, err = decimal.NewFromString(r.TotalHours); err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("invoice %d total_hours: %w", r.Number, err)
	}
	if out.Rate, err = decimal.NewFromString(r.Rate); err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("invoice %d rate: %w", r.Number, err)
	}
	if out.Total, err = decimal.NewFromString(r.Total); err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("invoice %d total: %w", r.Number, err)
	}
	if out.GeneratedAt, err = parseRequiredTime(r.GeneratedAt); err != nil {
		return model.InvoiceRecord{}, fmt.Errorf("invoice %d generated_at: %w", r.Number, err)
	}
	return out, nil
}
