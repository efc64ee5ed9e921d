package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/sandeepkv93/calbill/internal/invoice"
	"github.com/sandeepkv93/calbill/internal/model"
)

const (
	invoicesSheet = "Invoices"
	cyclesSheet   = "Cycles"
)

var ErrNothingToExport = errors.New("export: no invoices or cycles to export")

var invoiceHeaders = []string{"Invoice #", "Invoice Date", "Due Date", "Cycle", "Client", "Format", "Hours", "Rate", "Total", "Currency", "Document"}

var cycleHeaders = []string{"ID", "Name", "Start", "End", "Rate", "Client", "Client Tax ID"}

// WriteLedger writes the invoice ledger and cycle list as an xlsx workbook.
func WriteLedger(w io.Writer, records []model.InvoiceRecord, cycles []model.InvoiceCycle) error {
	if len(records) == 0 && len(cycles) == 0 {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(invoicesSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if _, err := f.NewSheet(cyclesSheet); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	if err := writeHeader(f, invoicesSheet, invoiceHeaders, headerStyle); err != nil {
		return err
	}
	for i, rec := range records {
		row := i + 2
		values := []any{
			invoice.FormatNumber(rec.Number),
			rec.InvoiceDate.Format(model.DateLayout),
			rec.DueDate.Format(model.DateLayout),
			rec.CycleName,
			rec.ClientName,
			string(rec.Format),
			rec.TotalHours.InexactFloat64(),
			rec.Rate.InexactFloat64(),
			rec.Total.InexactFloat64(),
			rec.Currency,
			rec.DocumentPath,
		}
		if err := f.SetSheetRow(invoicesSheet, cell("A", row), &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(invoicesSheet, cell("H", row), cell("I", row), moneyStyle); err != nil {
			return err
		}
	}
	if len(records) > 0 {
		totalRow := len(records) + 2
		if err := f.SetCellValue(invoicesSheet, cell("H", totalRow), "TOTAL"); err != nil {
			return err
		}
		if err := f.SetCellFormula(invoicesSheet, cell("I", totalRow), fmt.Sprintf("SUM(I2:I%d)", totalRow-1)); err != nil {
			return err
		}
		if err := f.SetCellStyle(invoicesSheet, cell("H", totalRow), cell("I", totalRow), headerStyle); err != nil {
			return err
		}
	}

	if err := writeHeader(f, cyclesSheet, cycleHeaders, headerStyle); err != nil {
		return err
	}
	for i, c := range cycles {
		row := i + 2
		values := []any{
			c.ID,
			c.Name,
			c.RangeStart.Format(model.DateLayout),
			c.RangeEnd.Format(model.DateLayout),
			c.Rate.InexactFloat64(),
			c.Client.Name,
			c.Client.TaxID,
		}
		if err := f.SetSheetRow(cyclesSheet, cell("A", row), &values); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last := colName(len(headers) - 1)
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 16)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
