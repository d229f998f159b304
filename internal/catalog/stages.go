package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for reference-data lookups. Callers match with errors.Is.
var (
	ErrUnknownStage     = errors.New("unknown process stage")
	ErrUnknownDetail    = errors.New("unknown detail")
	ErrInvalidStopStage = errors.New("stage is not a valid stop stage")
)

// StageCatalog holds the fixed total order of process stages and the
// subset at which a portion may legitimately stop. It is loaded once at
// startup and never mutated afterwards.
type StageCatalog struct {
	ordered   []string
	positions map[string]int
	stops     []string
	stopSet   map[string]struct{}
}

// NewStageCatalog builds a catalog from the ordered stage list and the
// stop-stage whitelist, in their declared orders. Every stop stage must
// name a known process stage.
func NewStageCatalog(ordered, stops []string) (*StageCatalog, error) {
	positions := make(map[string]int, len(ordered))
	for i, name := range ordered {
		if _, dup := positions[name]; dup {
			return nil, fmt.Errorf("duplicate process stage %q", name)
		}
		positions[name] = i
	}

	stopSet := make(map[string]struct{}, len(stops))
	for _, name := range stops {
		if _, ok := positions[name]; !ok {
			return nil, fmt.Errorf("stop stage %q: %w", name, ErrUnknownStage)
		}
		stopSet[name] = struct{}{}
	}

	return &StageCatalog{
		ordered:   append([]string(nil), ordered...),
		positions: positions,
		stops:     append([]string(nil), stops...),
		stopSet:   stopSet,
	}, nil
}

// PositionOf returns the stage's dense 0-based index in the total order.
func (c *StageCatalog) PositionOf(stage string) (int, error) {
	pos, ok := c.positions[stage]
	if !ok {
		return 0, fmt.Errorf("stage %q: %w", stage, ErrUnknownStage)
	}
	return pos, nil
}

// PrefixThrough returns the ordered stages from the first stage up to and
// including the given one. len(prefix) == PositionOf(stage)+1.
func (c *StageCatalog) PrefixThrough(stage string) ([]string, error) {
	pos, err := c.PositionOf(stage)
	if err != nil {
		return nil, err
	}
	return c.ordered[:pos+1], nil
}

// Stages returns all process stages in their total order.
func (c *StageCatalog) Stages() []string {
	return append([]string(nil), c.ordered...)
}

// StopStages returns the whitelist of stop stages in declared order.
func (c *StageCatalog) StopStages() []string {
	return append([]string(nil), c.stops...)
}

// IsStopStage reports whether the stage belongs to the stop whitelist.
func (c *StageCatalog) IsStopStage(stage string) bool {
	_, ok := c.stopSet[stage]
	return ok
}

// Contains reports whether the stage is a registered process stage.
func (c *StageCatalog) Contains(stage string) bool {
	_, ok := c.positions[stage]
	return ok
}
