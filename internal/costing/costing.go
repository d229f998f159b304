// Package costing implements the staged cost aggregation arithmetic: the
// cost of every material operation applicable to a portion of castings
// halted at a given stop stage.
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vklymenko/castcalc/internal/catalog"
	"github.com/vklymenko/castcalc/internal/materials"
)

// CostLine is one computed material operation for a portion.
type CostLine struct {
	OperationName    string
	Unit             string
	Price            decimal.Decimal
	ConsumedQuantity decimal.Decimal
	TotalCost        decimal.Decimal
	Stage            string
	PortionLabel     string
	PortionMassKg    decimal.Decimal
}

// Result is the ordered cost-line sequence for one portion plus its
// rounded sum. An empty Lines slice with a zero Sum is a valid result:
// no specification rows matched the resolved stage prefix.
type Result struct {
	Lines []CostLine
	Sum   decimal.Decimal
}

// Calculator computes portion costs against a fixed stage catalog. It is
// pure: no calls mutate the calculator or its inputs.
type Calculator struct {
	stages *catalog.StageCatalog
}

// NewCalculator returns a calculator bound to the process stage order.
func NewCalculator(stages *catalog.StageCatalog) *Calculator {
	return &Calculator{stages: stages}
}

// Compute prices every specification row whose stage lies in the prefix
// ending at stopStage, in catalog row order.
//
// massKg must be positive and quantity strictly positive; the caller is
// responsible for filtering zero-quantity portions out as a no-op before
// reaching the engine. Money values round half away from zero at two
// decimals. A missing row price is treated as zero.
func (c *Calculator) Compute(massKg decimal.Decimal, stopStage string, quantity int, rows []materials.SpecRow) (Result, error) {
	prefix, err := c.stages.PrefixThrough(stopStage)
	if err != nil {
		return Result{}, err
	}
	if !c.stages.IsStopStage(stopStage) {
		return Result{}, fmt.Errorf("stage %q: %w", stopStage, catalog.ErrInvalidStopStage)
	}

	included := make(map[string]struct{}, len(prefix))
	for _, stage := range prefix {
		included[stage] = struct{}{}
	}

	qty := decimal.NewFromInt(int64(quantity))
	portionMass := massKg.Mul(qty)
	label := fmt.Sprintf("%d units through %s", quantity, stopStage)

	result := Result{Lines: make([]CostLine, 0)}
	for _, row := range rows {
		if _, ok := included[row.ProcessStage]; !ok {
			continue
		}

		price := decimal.Zero
		if row.Price.Valid {
			price = row.Price.Decimal
		}

		consumed := row.RatePerKg.Mul(massKg).Mul(qty)
		result.Lines = append(result.Lines, CostLine{
			OperationName:    row.OperationName,
			Unit:             row.Unit,
			Price:            price,
			ConsumedQuantity: consumed,
			TotalCost:        consumed.Mul(price).Round(2),
			Stage:            row.ProcessStage,
			PortionLabel:     label,
			PortionMassKg:    portionMass,
		})
	}

	sum := decimal.Zero
	for _, line := range result.Lines {
		sum = sum.Add(line.TotalCost)
	}
	result.Sum = sum.Round(2)

	return result, nil
}
