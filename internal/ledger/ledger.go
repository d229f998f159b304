// Package ledger owns the ordered list of portions for one user session
// and folds their computed costs into a single aggregated report.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vklymenko/castcalc/internal/costing"
	"github.com/vklymenko/castcalc/internal/materials"
)

var (
	// ErrZeroQuantity is reported when an explicit compute is requested
	// for a portion whose quantity is not strictly positive. It is a
	// validation warning, not an engine failure.
	ErrZeroQuantity = errors.New("portion quantity must be positive")

	// ErrNoDetail is reported when a compute is requested before a
	// detail has been selected for the session.
	ErrNoDetail = errors.New("no detail selected")
)

// Portion is one user-defined batch of castings halted at a stop stage.
// A portion is Pending until computed; any edit returns it to Pending.
type Portion struct {
	StopStage string
	Quantity  int
	Result    *costing.Result
}

// Computed reports whether the portion carries a stored result.
func (p Portion) Computed() bool {
	return p.Result != nil
}

// AggregatedResult concatenates every computed portion's cost lines in
// ledger order. GrandTotal sums the per-portion rounded sums rather than
// re-rounding individual lines, bounding drift to one cent per portion.
type AggregatedResult struct {
	Lines       []costing.CostLine
	GrandTotal  decimal.Decimal
	TotalMassKg decimal.Decimal
}

// Ledger drives portion computation for one session. It is not safe for
// concurrent use; a session performs one operation at a time.
type Ledger struct {
	calc        *costing.Calculator
	rows        []materials.SpecRow
	defaultStop string

	detail   string
	massKg   decimal.Decimal
	portions []Portion
}

// New creates a ledger over the shared calculator and catalog rows. The
// ledger starts with one permanent portion at the default stop stage and
// quantity zero.
func New(calc *costing.Calculator, rows []materials.SpecRow, defaultStop string) *Ledger {
	return &Ledger{
		calc:        calc,
		rows:        rows,
		defaultStop: defaultStop,
		portions:    []Portion{{StopStage: defaultStop}},
	}
}

// SetDetail selects the detail whose mass drives all computations.
// Switching details invalidates every stored result.
func (l *Ledger) SetDetail(name string, massKg decimal.Decimal) {
	if l.detail == name {
		return
	}
	l.detail = name
	l.massKg = massKg
	for i := range l.portions {
		l.portions[i].Result = nil
	}
}

// Detail returns the currently selected detail name, empty when none.
func (l *Ledger) Detail() string {
	return l.detail
}

// MassKg returns the unit liquid-metal mass of the selected detail.
func (l *Ledger) MassKg() decimal.Decimal {
	return l.massKg
}

// Portions returns a snapshot of the portion list in ledger order.
func (l *Ledger) Portions() []Portion {
	return append([]Portion(nil), l.portions...)
}

// AddPortion inserts a new pending portion with default stage and zero
// quantity immediately after the given position. Out-of-range positions
// clamp to the nearest end; adding is always legal.
func (l *Ledger) AddPortion(afterIndex int) {
	if afterIndex < 0 {
		afterIndex = 0
	}
	if afterIndex >= len(l.portions) {
		afterIndex = len(l.portions) - 1
	}

	portion := Portion{StopStage: l.defaultStop}
	l.portions = append(l.portions, Portion{})
	copy(l.portions[afterIndex+2:], l.portions[afterIndex+1:])
	l.portions[afterIndex+1] = portion
}

// RemovePortion removes the portion at index. The first portion is
// permanent; removing it, or an out-of-range index, is a silent no-op.
func (l *Ledger) RemovePortion(index int) {
	if index <= 0 || index >= len(l.portions) {
		return
	}
	l.portions = append(l.portions[:index], l.portions[index+1:]...)
}

// UpdatePortion overwrites the portion's stop stage and quantity. A
// previously computed result becomes stale and the portion returns to
// Pending until recomputed.
func (l *Ledger) UpdatePortion(index int, stopStage string, quantity int) error {
	if index < 0 || index >= len(l.portions) {
		return fmt.Errorf("portion index %d out of range", index)
	}
	if quantity < 0 {
		return fmt.Errorf("portion quantity must be non-negative, got %d", quantity)
	}

	l.portions[index].StopStage = stopStage
	l.portions[index].Quantity = quantity
	l.portions[index].Result = nil
	return nil
}

// Compute runs the calculator for the portion at index and stores the
// result. Quantity must be strictly positive; otherwise ErrZeroQuantity
// is returned and nothing is computed.
func (l *Ledger) Compute(index int) error {
	if index < 0 || index >= len(l.portions) {
		return fmt.Errorf("portion index %d out of range", index)
	}
	return l.computeAt(index)
}

// ComputeAll computes every portion with a positive quantity, skipping
// the rest as no-ops, and reports how many portions were computed.
func (l *Ledger) ComputeAll() (int, error) {
	computed := 0
	for i := range l.portions {
		if l.portions[i].Quantity <= 0 {
			continue
		}
		if err := l.computeAt(i); err != nil {
			return computed, err
		}
		computed++
	}
	return computed, nil
}

func (l *Ledger) computeAt(index int) error {
	p := &l.portions[index]
	if p.Quantity <= 0 {
		return ErrZeroQuantity
	}
	if l.detail == "" {
		return ErrNoDetail
	}

	result, err := l.calc.Compute(l.massKg, p.StopStage, p.Quantity, l.rows)
	if err != nil {
		return fmt.Errorf("compute portion %d: %w", index, err)
	}

	p.Result = &result
	return nil
}

// Report folds every computed portion into one aggregated result in
// ledger order. Pending portions contribute nothing.
func (l *Ledger) Report() AggregatedResult {
	report := AggregatedResult{
		Lines:       make([]costing.CostLine, 0),
		GrandTotal:  decimal.Zero,
		TotalMassKg: decimal.Zero,
	}

	for _, p := range l.portions {
		if !p.Computed() {
			continue
		}
		report.Lines = append(report.Lines, p.Result.Lines...)
		report.GrandTotal = report.GrandTotal.Add(p.Result.Sum)
		report.TotalMassKg = report.TotalMassKg.Add(l.massKg.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}

	return report
}
