// Package export renders an aggregated cost report as an .xlsx workbook.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vklymenko/castcalc/internal/ledger"
)

const (
	// SheetName is the single worksheet holding the report table.
	SheetName = "Materials"

	// headerRow is the 1-based row of the column headers; the bold title
	// sits at A1 with one blank row between them.
	headerRow = 3

	// moneyFormat is the built-in excelize number format for "#,##0.00".
	moneyFormat = 4
)

var headers = []string{
	"No.",
	"Operation",
	"Unit",
	"Unit price",
	"Quantity",
	"Total cost",
	"Process stage",
	"Portion",
	"Portion mass (kg)",
}

// Numeric columns carrying the 2-decimal money format.
const (
	priceCol = 4
	qtyCol   = 5
	costCol  = 6
)

// BuildReport renders the aggregated result for a detail into a new
// workbook: bold title, header row, one row per cost line, and a bold
// summary row with the grand total below the table.
func BuildReport(detail string, report ledger.AggregatedResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create bold style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}
	boldMoney, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: moneyFormat})
	if err != nil {
		return nil, fmt.Errorf("create bold money style: %w", err)
	}

	title := fmt.Sprintf("Materials calculation for %s", detail)
	if err := f.SetCellValue(SheetName, "A1", title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "A1", bold); err != nil {
		return nil, fmt.Errorf("style title: %w", err)
	}

	widths := make([]int, len(headers))
	for col, header := range headers {
		if err := setCell(f, col+1, headerRow, header); err != nil {
			return nil, err
		}
		widths[col] = max(widths[col], len(header))
	}

	for i, line := range report.Lines {
		row := headerRow + 1 + i
		values := []any{
			i + 1,
			line.OperationName,
			line.Unit,
			line.Price.InexactFloat64(),
			line.ConsumedQuantity.InexactFloat64(),
			line.TotalCost.InexactFloat64(),
			line.Stage,
			line.PortionLabel,
			line.PortionMassKg.InexactFloat64(),
		}
		for col, v := range values {
			if err := setCell(f, col+1, row, v); err != nil {
				return nil, err
			}
			widths[col] = max(widths[col], len(fmt.Sprint(v)))
		}
	}

	if n := len(report.Lines); n > 0 {
		from, _ := excelize.CoordinatesToCellName(priceCol, headerRow+1)
		to, _ := excelize.CoordinatesToCellName(costCol, headerRow+n)
		if err := f.SetCellStyle(SheetName, from, to, money); err != nil {
			return nil, fmt.Errorf("style money columns: %w", err)
		}
	}

	summaryRow := headerRow + len(report.Lines) + 2
	if err := setCell(f, 2, summaryRow, "Total materials cost:"); err != nil {
		return nil, err
	}
	if err := setCell(f, costCol, summaryRow, report.GrandTotal.InexactFloat64()); err != nil {
		return nil, err
	}
	labelCell, _ := excelize.CoordinatesToCellName(2, summaryRow)
	if err := f.SetCellStyle(SheetName, labelCell, labelCell, bold); err != nil {
		return nil, fmt.Errorf("style summary label: %w", err)
	}
	totalCell, _ := excelize.CoordinatesToCellName(costCol, summaryRow)
	if err := f.SetCellStyle(SheetName, totalCell, totalCell, boldMoney); err != nil {
		return nil, fmt.Errorf("style summary total: %w", err)
	}

	for col, width := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(SheetName, name, name, float64(width+2)); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	return f, nil
}

// Filename returns the download name for a report:
// calculation_<detail>[_<total-mass>kg].xlsx.
func Filename(detail string, report ledger.AggregatedResult) string {
	name := strings.ReplaceAll(strings.TrimSpace(detail), " ", "_")
	if report.TotalMassKg.Sign() > 0 {
		return fmt.Sprintf("calculation_%s_%skg.xlsx", name, report.TotalMassKg.String())
	}
	return fmt.Sprintf("calculation_%s.xlsx", name)
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("resolve cell (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("write cell %s: %w", cell, err)
	}
	return nil
}
