package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/calbill/internal/model"
)

// Fixed-width so that text comparison in SQL matches instant ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const eventColumns = `source_id, title, start_at, end_at, cycle_id`

const cycleColumns = `id, name, range_start, range_end, rate, client_name, client_address, client_tax_id, created_at`

type SQLiteRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLiteRepository(db *sqlx.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	// A single connection keeps the foreign_keys pragma in effect for every
	// statement and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// OpenSQLite opens the database at path and brings the schema up to date.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Sync upserts events by source id in a single transaction. Cycle
// assignments are never touched.
func (r *SQLiteRepository) Sync(ctx context.Context, events []model.RawEvent) (SyncResult, error) {
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return SyncResult{}, err
		}
	}

	var res SyncResult
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		syncedAt := mustTime(r.now())
		for _, ev := range events {
			var row eventRow
			err := tx.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM calendar_events WHERE source_id = ?`, ev.SourceID)
			if errors.Is(err, sql.ErrNoRows) {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO calendar_events (source_id, title, start_at, end_at, cycle_id, synced_at)
					VALUES (?, ?, ?, ?, NULL, ?)`,
					ev.SourceID, ev.Title, mustTime(ev.Start), mustTime(ev.End), syncedAt,
				); err != nil {
					return fmt.Errorf("insert event %s: %w", ev.SourceID, err)
				}
				res.Inserted++
				continue
			}
			if err != nil {
				return fmt.Errorf("load event %s: %w", ev.SourceID, err)
			}
			current, err := row.toModel()
			if err != nil {
				return err
			}
			if current.SameContent(ev) {
				res.Unchanged++
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE calendar_events
				SET title = ?, start_at = ?, end_at = ?, synced_at = ?
				WHERE source_id = ?`,
				ev.Title, mustTime(ev.Start), mustTime(ev.End), syncedAt, ev.SourceID,
			); err != nil {
				return fmt.Errorf("update event %s: %w", ev.SourceID, err)
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return res, nil
}

// Candidates lists events intersecting [from, to) ordered by start, then
// source id.
func (r *SQLiteRepository) Candidates(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	lo, hi := mustTime(from), mustTime(to)
	rows := make([]eventRow, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE (start_at < ? AND end_at > ?)
		   OR (start_at = end_at AND start_at >= ? AND start_at < ?)
		ORDER BY start_at ASC, source_id ASC`,
		hi, lo, lo, hi,
	)
	if err != nil {
		return nil, err
	}
	return eventsFromRows(rows)
}

// SetCycle is the only place where event ownership changes. With a non-nil
// target every event must be unowned or already owned by target; with a nil
// target ownership is cleared. Either all events change or none do.
func (r *SQLiteRepository) SetCycle(ctx context.Context, sourceIDs []string, target *int64) error {
	ids := uniqueIDs(sourceIDs)
	if len(ids) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if target != nil {
			var exists int
			if err := tx.GetContext(ctx, &exists, `SELECT COUNT(1) FROM invoice_cycles WHERE id = ?`, *target); err != nil {
				return err
			}
			if exists == 0 {
				return model.Invalid("cycle_id", "cycle %d does not exist", *target)
			}
		}

		query, args, err := sqlx.In(`SELECT `+eventColumns+` FROM calendar_events WHERE source_id IN (?)`, ids)
		if err != nil {
			return err
		}
		rows := make([]eventRow, 0, len(ids))
		if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
			return err
		}

		found := make(map[string]eventRow, len(rows))
		for _, row := range rows {
			found[row.SourceID] = row
		}
		missing := make([]string, 0)
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return model.Invalid("source_id", "unknown event(s): %s", strings.Join(missing, ", "))
		}

		if target != nil {
			conflicts := make([]model.Conflict, 0)
			for _, id := range ids {
				row := found[id]
				if row.CycleID.Valid && row.CycleID.Int64 != *target {
					conflicts = append(conflicts, model.Conflict{SourceID: row.SourceID, Title: row.Title, CycleID: row.CycleID.Int64})
				}
			}
			if len(conflicts) > 0 {
				return &model.ConflictError{TargetCycleID: *target, Conflicts: conflicts}
			}
		}

		owner := sql.NullInt64{}
		if target != nil {
			owner = sql.NullInt64{Int64: *target, Valid: true}
		}
		query, args, err = sqlx.In(`UPDATE calendar_events SET cycle_id = ? WHERE source_id IN (?)`, owner, ids)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
		return err
	})
}

func (r *SQLiteRepository) EventsForCycle(ctx context.Context, cycleID int64) ([]model.CalendarEvent, error) {
	rows := make([]eventRow, 0)
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE cycle_id = ?
		ORDER BY start_at ASC, source_id ASC`, cycleID)
	if err != nil {
		return nil, err
	}
	return eventsFromRows(rows)
}

func (r *SQLiteRepository) CreateCycle(ctx context.Context, in model.InvoiceCycle) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO invoice_cycles (name, range_start, range_end, rate, client_name, client_address, client_tax_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.Name), in.RangeStart.Format(model.DateLayout), in.RangeEnd.Format(model.DateLayout), in.Rate.String(),
		in.Client.Name, in.Client.Address, in.Client.TaxID, mustTime(created),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetCycle(ctx context.Context, id int64) (model.InvoiceCycle, error) {
	var row cycleRow
	err := r.db.GetContext(ctx, &row, `SELECT `+cycleColumns+` FROM invoice_cycles WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.InvoiceCycle{}, ErrNotFound
		}
		return model.InvoiceCycle{}, err
	}
	return row.toModel()
}

func (r *SQLiteRepository) ListCycles(ctx context.Context) ([]model.InvoiceCycle, error) {
	rows := make([]cycleRow, 0)
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+cycleColumns+` FROM invoice_cycles ORDER BY id ASC`); err != nil {
		return nil, err
	}
	out := make([]model.InvoiceCycle, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context) (model.BillingProfile, error) {
	var row profileRow
	err := r.db.GetContext(ctx, &row, `
		SELECT full_name, address, tax_id, payment_instructions, account_name, account_number, bank_code, bank_name, account_type, updated_at
		FROM billing_profile WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BillingProfile{}, ErrNotFound
		}
		return model.BillingProfile{}, err
	}
	return row.toModel()
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, in model.BillingProfile) error {
	if err := in.Validate(); err != nil {
		return err
	}
	row := profileRow{
		FullName:            in.FullName,
		Address:             in.Address,
		TaxID:               in.TaxID,
		PaymentInstructions: in.PaymentInstructions,
		AccountName:         in.AccountName,
		AccountNumber:       in.AccountNumber,
		BankCode:            in.BankCode,
		BankName:            in.BankName,
		AccountType:         in.AccountType,
		UpdatedAt:           mustTime(r.now()),
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO billing_profile (id, full_name, address, tax_id, payment_instructions, account_name, account_number, bank_code, bank_name, account_type, updated_at)
		VALUES (1, :full_name, :address, :tax_id, :payment_instructions, :account_name, :account_number, :bank_code, :bank_name, :account_type, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			full_name = excluded.full_name,
			address = excluded.address,
			tax_id = excluded.tax_id,
			payment_instructions = excluded.payment_instructions,
			account_name = excluded.account_name,
			account_number = excluded.account_number,
			bank_code = excluded.bank_code,
			bank_name = excluded.bank_name,
			account_type = excluded.account_type,
			updated_at = excluded.updated_at`, row)
	return err
}

// NextInvoiceNumber returns one past the highest recorded invoice number.
func (r *SQLiteRepository) NextInvoiceNumber(ctx context.Context) (int64, error) {
	var next int64
	if err := r.db.GetContext(ctx, &next, `SELECT COALESCE(MAX(number), 0) + 1 FROM invoices`); err != nil {
		return 0, err
	}
	return next, nil
}

func (r *SQLiteRepository) RecordInvoice(ctx context.Context, in model.InvoiceRecord) error {
	if in.Number <= 0 {
		return model.Invalid("number", "must be positive, got %d", in.Number)
	}
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoices (number, cycle_id, format, invoice_date, due_date, total_hours, rate, total, currency, document_path, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Number, in.CycleID, string(in.Format), in.InvoiceDate.Format(model.DateLayout), in.DueDate.Format(model.DateLayout),
		in.TotalHours.StringFixed(2), in.Rate.String(), in.Total.StringFixed(2), in.Currency, in.DocumentPath, mustTime(generated),
	)
	if err != nil {
		return fmt.Errorf("record invoice %d: %w", in.Number, err)
	}
	return nil
}

const invoiceSelect = `
	SELECT i.number, i.cycle_id, c.name AS cycle_name, c.client_name AS client_name, i.format, i.invoice_date, i.due_date,
	       i.total_hours, i.rate, i.total, i.currency, i.document_path, i.generated_at
	FROM invoices i
	LEFT JOIN invoice_cycles c ON c.id = i.cycle_id`

func (r *SQLiteRepository) GetInvoice(ctx context.Context, number int64) (model.InvoiceRecord, error) {
	var row invoiceRow
	err := r.db.GetContext(ctx, &row, invoiceSelect+` WHERE i.number = ?`, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.InvoiceRecord{}, ErrNotFound
		}
		return model.InvoiceRecord{}, err
	}
	return row.toModel()
}

func (r *SQLiteRepository) ListInvoices(ctx context.Context) ([]model.InvoiceRecord, error) {
	rows := make([]invoiceRow, 0)
	if err := r.db.SelectContext(ctx, &rows, invoiceSelect+` ORDER BY i.number DESC`); err != nil {
		return nil, err
	}
	out := make([]model.InvoiceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteInvoice(ctx context.Context, number int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE number = ?`, number)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func eventsFromRows(rows []eventRow) ([]model.CalendarEvent, error) {
	out := make([]model.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
