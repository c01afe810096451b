// Package report renders consumption logs and issued assets as XLSX
// workbooks.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/zahtevki/internal/model"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateFormat = "02.01.2006"

var consumptionHeaders = []any{
	"#", "Date", "Employee", "Department", "Product", "Quantity", "Request",
}

var assetHeaders = []any{
	"#", "Employee", "Product", "Quantity", "Issued", "Request", "Status", "Returned", "Condition", "Notes",
}

// Consumption writes a workbook with one row per consumption log.
func Consumption(w io.Writer, logs []model.ConsumptionLog) error {
	rows := make([][]any, 0, len(logs))
	for i, l := range logs {
		rows = append(rows, []any{
			i + 1,
			l.CreatedAt.Format(dateFormat),
			l.EmployeeName,
			l.DepartmentName,
			l.ProductName,
			l.Quantity.InexactFloat64(),
			l.RequestName,
		})
	}
	return write(w, "Consumption", consumptionHeaders, rows, map[string]float64{"C": 25, "D": 25, "E": 30})
}

// Assets writes a workbook with one row per asset card line.
func Assets(w io.Writer, lines []model.AssetCardLine) error {
	rows := make([][]any, 0, len(lines))
	for i, l := range lines {
		status, returned := "issued", ""
		if l.Returned {
			status = "returned"
			if l.ReturnDate != nil {
				returned = l.ReturnDate.Format(dateFormat)
			}
		}
		request := ""
		if l.RequestID.Valid {
			request = fmt.Sprintf("%d", l.RequestID.Int64)
		}
		rows = append(rows, []any{
			i + 1,
			l.EmployeeName,
			l.ProductName,
			l.Quantity.InexactFloat64(),
			l.IssueDate.Format(dateFormat),
			request,
			status,
			returned,
			l.ReturnCondition.String,
			l.ReturnNotes,
		})
	}
	return write(w, "Assets", assetHeaders, rows, map[string]float64{"B": 25, "C": 30, "J": 40})
}

func write(w io.Writer, sheet string, headers []any, rows [][]any, widths map[string]float64) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
