// Package materials loads the material specification catalog: one row per
// material operation, scoped to a process stage, with a consumption rate
// per kilogram of liquid metal and an optional unit price.
//
// The catalog is read once at startup from an .xlsx workbook and treated
// as immutable afterwards.
package materials

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/vklymenko/castcalc/internal/catalog"
)

// SpecRow is one material specification entry.
//
// Price is nullable: a missing price means "no price yet" and is treated
// as zero by the calculator, never as an error.
type SpecRow struct {
	OperationName string
	Unit          string
	RatePerKg     decimal.Decimal
	Price         decimal.NullDecimal
	ProcessStage  string
	SpecVersion   string
}

// Column headers expected in the first row of the workbook. spec_version
// is optional; the rest are required.
const (
	colOperationName = "operation_name"
	colUnit          = "unit"
	colRatePerKg     = "rate_per_kg"
	colPrice         = "price"
	colProcessStage  = "process_stage"
	colSpecVersion   = "spec_version"
)

// Load reads the catalog workbook and validates every row against the
// stage catalog. A load failure is fatal to the caller: no computation is
// possible without a catalog.
func Load(path string, stages *catalog.StageCatalog) ([]SpecRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open material catalog %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("material catalog %s: sheet %q is empty", path, sheet)
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("material catalog %s: %w", path, err)
	}

	specs := make([]SpecRow, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		if isBlankRow(raw) {
			continue
		}
		row, err := parseRow(raw, cols)
		if err != nil {
			return nil, fmt.Errorf("material catalog %s row %d: %w", path, i+2, err)
		}
		if !stages.Contains(row.ProcessStage) {
			return nil, fmt.Errorf("material catalog %s row %d: stage %q: %w", path, i+2, row.ProcessStage, catalog.ErrUnknownStage)
		}
		specs = append(specs, row)
	}

	return specs, nil
}

// columns holds 0-based column indices resolved from the header row.
// specVersion is -1 when the optional column is absent.
type columns struct {
	operationName int
	unit          int
	ratePerKg     int
	price         int
	processStage  int
	specVersion   int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{
		operationName: -1,
		unit:          -1,
		ratePerKg:     -1,
		price:         -1,
		processStage:  -1,
		specVersion:   -1,
	}

	for i, name := range header {
		switch strings.TrimSpace(name) {
		case colOperationName:
			cols.operationName = i
		case colUnit:
			cols.unit = i
		case colRatePerKg:
			cols.ratePerKg = i
		case colPrice:
			cols.price = i
		case colProcessStage:
			cols.processStage = i
		case colSpecVersion:
			cols.specVersion = i
		}
	}

	required := map[string]int{
		colOperationName: cols.operationName,
		colUnit:          cols.unit,
		colRatePerKg:     cols.ratePerKg,
		colPrice:         cols.price,
		colProcessStage:  cols.processStage,
	}
	for name, idx := range required {
		if idx < 0 {
			return cols, fmt.Errorf("missing required column %q", name)
		}
	}

	return cols, nil
}

func parseRow(raw []string, cols columns) (SpecRow, error) {
	row := SpecRow{
		OperationName: cell(raw, cols.operationName),
		Unit:          cell(raw, cols.unit),
		ProcessStage:  cell(raw, cols.processStage),
	}
	if cols.specVersion >= 0 {
		row.SpecVersion = cell(raw, cols.specVersion)
	}

	if row.OperationName == "" {
		return row, fmt.Errorf("operation_name is empty")
	}
	if row.ProcessStage == "" {
		return row, fmt.Errorf("process_stage is empty")
	}

	rate, err := decimal.NewFromString(cell(raw, cols.ratePerKg))
	if err != nil {
		return row, fmt.Errorf("rate_per_kg must be numeric: %w", err)
	}
	if rate.Sign() < 0 {
		return row, fmt.Errorf("rate_per_kg must be non-negative, got %s", rate)
	}
	row.RatePerKg = rate

	if priceRaw := cell(raw, cols.price); priceRaw != "" {
		price, err := decimal.NewFromString(priceRaw)
		if err != nil {
			return row, fmt.Errorf("price must be numeric: %w", err)
		}
		if price.Sign() < 0 {
			return row, fmt.Errorf("price must be non-negative, got %s", price)
		}
		row.Price = decimal.NullDecimal{Decimal: price, Valid: true}
	}

	return row, nil
}

// cell returns the trimmed cell value at idx, tolerating rows that the
// xlsx reader truncates at the last non-empty cell.
func cell(raw []string, idx int) string {
	if idx < 0 || idx >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[idx])
}

func isBlankRow(raw []string) bool {
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
