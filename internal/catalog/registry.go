package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Detail describes one castable part type: its unit liquid-metal mass and
// whether it may currently be selected for computation.
type Detail struct {
	Name      string
	MassKg    decimal.Decimal
	Available bool
}

// DetailRegistry maps detail names to their unit liquid-metal mass and
// availability flag.
type DetailRegistry struct {
	ordered []Detail
	byName  map[string]Detail
}

// NewDetailRegistry builds a registry preserving declaration order.
func NewDetailRegistry(details []Detail) (*DetailRegistry, error) {
	byName := make(map[string]Detail, len(details))
	for _, d := range details {
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate detail %q", d.Name)
		}
		if d.MassKg.Sign() <= 0 {
			return nil, fmt.Errorf("detail %q: mass must be positive, got %s", d.Name, d.MassKg)
		}
		byName[d.Name] = d
	}
	return &DetailRegistry{
		ordered: append([]Detail(nil), details...),
		byName:  byName,
	}, nil
}

// MassOf returns the unit liquid-metal mass in kilograms.
func (r *DetailRegistry) MassOf(name string) (decimal.Decimal, error) {
	d, ok := r.byName[name]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("detail %q: %w", name, ErrUnknownDetail)
	}
	return d.MassKg, nil
}

// IsAvailable reports the detail's availability flag. Unavailable details
// must not reach the calculator; the caller substitutes a default instead.
func (r *DetailRegistry) IsAvailable(name string) (bool, error) {
	d, ok := r.byName[name]
	if !ok {
		return false, fmt.Errorf("detail %q: %w", name, ErrUnknownDetail)
	}
	return d.Available, nil
}

// List returns every registered detail in declaration order.
func (r *DetailRegistry) List() []Detail {
	return append([]Detail(nil), r.ordered...)
}

// FirstAvailable returns the first available detail in declaration order,
// or an error when nothing is selectable.
func (r *DetailRegistry) FirstAvailable() (Detail, error) {
	for _, d := range r.ordered {
		if d.Available {
			return d, nil
		}
	}
	return Detail{}, fmt.Errorf("no available detail: %w", ErrUnknownDetail)
}
