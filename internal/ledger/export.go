package ledger

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Format is a ledger export file format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat accepts "xlsx" or "csv"; empty defaults to xlsx
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ExportOptions configures ledger exports
type ExportOptions struct {
	SheetName       string
	TimestampFormat string
	FreezeHeader    bool
	AutoFilter      bool
}

// DefaultExportOptions returns default export options
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		SheetName:       "Ledger",
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FreezeHeader:    true,
		AutoFilter:      true,
	}
}

var exportHeader = []string{"id", "project_id", "buyer_name", "amount_paid", "transaction_id", "timestamp"}

func (o ExportOptions) row(r *Record) []string {
	return []string{
		r.ID.String(),
		r.ProjectID,
		r.BuyerName,
		r.AmountPaid.String(),
		r.TransactionID,
		r.Timestamp.UTC().Format(o.TimestampFormat),
	}
}

// Export writes records to w in the requested format
func Export(w io.Writer, format Format, records []*Record, opts ExportOptions) error {
	switch format {
	case FormatXLSX:
		return ExportXLSX(w, records, opts)
	case FormatCSV:
		return ExportCSV(w, records, opts)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportCSV writes a header row followed by one row per record
func ExportCSV(w io.Writer, records []*Record, opts ExportOptions) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(opts.row(r)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportXLSX writes a single-sheet workbook
func ExportXLSX(w io.Writer, records []*Record, opts ExportOptions) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := opts.SheetName
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(exportHeader))
	if err != nil {
		return err
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F6F8B"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := file.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, r := range records {
		rowNum := i + 2
		values := opts.row(r)
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			var value interface{} = v
			if exportHeader[col] == "amount_paid" {
				value = r.AmountPaid.InexactFloat64()
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := file.SetColWidth(sheet, "A", lastCol, 24); err != nil {
		return err
	}
	if opts.FreezeHeader {
		if err := file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}
	if opts.AutoFilter && len(records) > 0 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(records)+1)
		if err := file.AutoFilter(sheet, ref, nil); err != nil {
			return err
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
