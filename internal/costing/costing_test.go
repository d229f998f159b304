package costing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vklymenko/castcalc/internal/catalog"
	"github.com/vklymenko/castcalc/internal/materials"
)

// Mirror of the production pipeline: "Fettling" sits at position 16, the
// seventeenth stage.
var pipelineStages = []string{
	"Steel scrap preparation",
	"Furnace preparation (lining)",
	"Stopper preparation",
	"Ladle preparation (lining)",
	"Steel melting",
	"Steel pouring",
	"Sand mix preparation",
	"Mix and core transport to moulding line",
	"Pattern set and siphon tube installation",
	"Half-mould production",
	"Half-mould finishing and assembly",
	"Mould assembly",
	"Mould pouring",
	"Mould preparation for knockout",
	"Mould transfer and knockout",
	"Casting shakeout (primary fettling)",
	"Fettling",
	"Shot blasting",
	"Rotary table grinding",
	"Emery grinding",
	"Defect repair",
	"Non-destructive testing",
	"Heat treatment",
	"Casting acceptance",
}

var pipelineStops = []string{
	"Fettling",
	"Non-destructive testing",
	"Casting acceptance",
	"Shot blasting",
}

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	stages, err := catalog.NewStageCatalog(pipelineStages, pipelineStops)
	if err != nil {
		t.Fatalf("NewStageCatalog: %v", err)
	}
	return NewCalculator(stages)
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func price(t *testing.T, s string) decimal.NullDecimal {
	t.Helper()
	return decimal.NullDecimal{Decimal: dec(t, s), Valid: true}
}

func TestCompute_ScenarioA(t *testing.T) {
	calc := newTestCalculator(t)

	rows := []materials.SpecRow{{
		OperationName: "Scrap charge",
		Unit:          "t",
		RatePerKg:     dec(t, "0.01"),
		Price:         price(t, "15.5"),
		ProcessStage:  "Steel melting",
	}}

	result, err := calc.Compute(dec(t, "750"), "Fettling", 2, rows)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if len(result.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(result.Lines))
	}
	line := result.Lines[0]
	if !line.ConsumedQuantity.Equal(dec(t, "15")) {
		t.Fatalf("consumed quantity = %s, want 15", line.ConsumedQuantity)
	}
	if line.TotalCost.StringFixed(2) != "232.50" {
		t.Fatalf("total cost = %s, want 232.50", line.TotalCost.StringFixed(2))
	}
	if result.Sum.StringFixed(2) != "232.50" {
		t.Fatalf("sum = %s, want 232.50", result.Sum.StringFixed(2))
	}
	if line.PortionLabel != "2 units through Fettling" {
		t.Fatalf("portion label = %q", line.PortionLabel)
	}
	if !line.PortionMassKg.Equal(dec(t, "1500")) {
		t.Fatalf("portion mass = %s, want 1500", line.PortionMassKg)
	}
}

func TestCompute_ScenarioB_NullPriceYieldsZeroCost(t *testing.T) {
	calc := newTestCalculator(t)

	rows := []materials.SpecRow{{
		OperationName: "Binder",
		Unit:          "kg",
		RatePerKg:     dec(t, "0.25"),
		ProcessStage:  "Sand mix preparation",
	}}

	result, err := calc.Compute(dec(t, "750"), "Fettling", 10, rows)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	line := result.Lines[0]
	if !line.TotalCost.IsZero() {
		t.Fatalf("total cost = %s, want 0", line.TotalCost)
	}
	if !line.Price.IsZero() {
		t.Fatalf("effective price = %s, want 0", line.Price)
	}
	if !result.Sum.IsZero() {
		t.Fatalf("sum = %s, want 0", result.Sum)
	}
	// Consumption is still reported even without a price.
	if !line.ConsumedQuantity.Equal(dec(t, "1875")) {
		t.Fatalf("consumed quantity = %s, want 1875", line.ConsumedQuantity)
	}
}

func TestCompute_ScenarioC_FirstStagePrefixHasOneStage(t *testing.T) {
	stages, err := catalog.NewStageCatalog(
		[]string{"Steel scrap preparation", "Steel melting"},
		[]string{"Steel scrap preparation"},
	)
	if err != nil {
		t.Fatalf("NewStageCatalog: %v", err)
	}
	calc := NewCalculator(stages)

	rows := []materials.SpecRow{
		{OperationName: "Scrap", Unit: "t", RatePerKg: dec(t, "1"), Price: price(t, "2"), ProcessStage: "Steel scrap preparation"},
		{OperationName: "Electrodes", Unit: "kg", RatePerKg: dec(t, "1"), Price: price(t, "9"), ProcessStage: "Steel melting"},
	}

	result, err := calc.Compute(dec(t, "10"), "Steel scrap preparation", 1, rows)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if len(result.Lines) != 1 {
		t.Fatalf("expected only first-stage rows, got %d lines", len(result.Lines))
	}
	if result.Lines[0].OperationName != "Scrap" {
		t.Fatalf("unexpected line: %+v", result.Lines[0])
	}
}

func TestCompute_ScenarioD_NoMatchingRowsIsNotAnError(t *testing.T) {
	calc := newTestCalculator(t)

	rows := []materials.SpecRow{{
		OperationName: "Quench oil",
		Unit:          "l",
		RatePerKg:     dec(t, "0.5"),
		Price:         price(t, "30"),
		ProcessStage:  "Heat treatment",
	}}

	// Heat treatment lies beyond the Fettling prefix.
	result, err := calc.Compute(dec(t, "750"), "Fettling", 2, rows)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(result.Lines))
	}
	if !result.Sum.IsZero() {
		t.Fatalf("sum = %s, want 0", result.Sum)
	}
}

func TestCompute_UnknownStopStage(t *testing.T) {
	calc := newTestCalculator(t)

	_, err := calc.Compute(dec(t, "750"), "Polishing", 1, nil)
	if !errors.Is(err, catalog.ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestCompute_StopStageOutsideWhitelist(t *testing.T) {
	calc := newTestCalculator(t)

	// A real process stage, but not an allowed halt point.
	_, err := calc.Compute(dec(t, "750"), "Steel melting", 1, nil)
	if !errors.Is(err, catalog.ErrInvalidStopStage) {
		t.Fatalf("expected ErrInvalidStopStage, got %v", err)
	}
}

func TestCompute_PreservesCatalogRowOrder(t *testing.T) {
	calc := newTestCalculator(t)

	rows := []materials.SpecRow{
		{OperationName: "Third", Unit: "kg", RatePerKg: dec(t, "1"), Price: price(t, "1"), ProcessStage: "Fettling"},
		{OperationName: "First", Unit: "kg", RatePerKg: dec(t, "1"), Price: price(t, "1"), ProcessStage: "Steel scrap preparation"},
		{OperationName: "Skipped", Unit: "kg", RatePerKg: dec(t, "1"), Price: price(t, "1"), ProcessStage: "Heat treatment"},
		{OperationName: "Second", Unit: "kg", RatePerKg: dec(t, "1"), Price: price(t, "1"), ProcessStage: "Steel pouring"},
	}

	result, err := calc.Compute(dec(t, "1"), "Fettling", 1, rows)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	got := []string{}
	for _, line := range result.Lines {
		got = append(got, line.OperationName)
	}
	want := []string{"Third", "First", "Second"}
	if len(got) != len(want) {
		t.Fatalf("lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("filter reordered rows: %v, want %v", got, want)
		}
	}
}

func TestCompute_RoundsHalfAwayFromZero(t *testing.T) {
	calc := newTestCalculator(t)

	// 1 * 1 * 1 * 2.005 = 2.005 → 2.01 under half-away-from-zero.
	rows := []materials.SpecRow{{
		OperationName: "Edge case",
		Unit:          "kg",
		RatePerKg:     dec(t, "1"),
		Price:         price(t, "2.005"),
		ProcessStage:  "Fettling",
	}}

	result, err := calc.Compute(dec(t, "1"), "Fettling", 1, rows)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if result.Lines[0].TotalCost.StringFixed(2) != "2.01" {
		t.Fatalf("total cost = %s, want 2.01", result.Lines[0].TotalCost.StringFixed(2))
	}
}

func TestCompute_SumAddsRoundedLineCosts(t *testing.T) {
	calc := newTestCalculator(t)

	// Each line rounds to 0.33; the portion sum adds the rounded values.
	row := materials.SpecRow{
		Unit:         "kg",
		RatePerKg:    dec(t, "1"),
		Price:        price(t, "0.333"),
		ProcessStage: "Fettling",
	}
	rows := []materials.SpecRow{}
	for _, name := range []string{"A", "B", "C"} {
		r := row
		r.OperationName = name
		rows = append(rows, r)
	}

	result, err := calc.Compute(dec(t, "1"), "Fettling", 1, rows)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if result.Sum.StringFixed(2) != "0.99" {
		t.Fatalf("sum = %s, want 0.99 (3 x 0.33)", result.Sum.StringFixed(2))
	}
}
