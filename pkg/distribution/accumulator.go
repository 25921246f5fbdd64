package distribution

import (
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
)

// Accumulator sums observation weights per (category, hour). Summation is
// the only mutation; a finished accumulator is read through Distribution.
// It is not safe for concurrent use.
type Accumulator struct {
	cells      map[Key]float64
	categories map[string]bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		cells:      make(map[Key]float64),
		categories: make(map[string]bool),
	}
}

// Add folds one observation in.
func (a *Accumulator) Add(o Observation) error {
	if o.Weight < 0 || math.IsNaN(o.Weight) || math.IsInf(o.Weight, 0) {
		return fmt.Errorf("%w: %s hour %d has weight %v", daypart.ErrInputDomain, o.Category, o.Hour, o.Weight)
	}
	a.touch(o.Category)
	a.cells[Key{Category: o.Category, Hour: o.Hour}] += o.Weight
	return nil
}

// AddAll folds a batch of observations in, stopping at the first bad one.
func (a *Accumulator) AddAll(obs []Observation) error {
	for _, o := range obs {
		if err := a.Add(o); err != nil {
			return err
		}
	}
	return nil
}

// Touch registers a category with no evidence, so it still appears in the
// distribution with an empty histogram.
func (a *Accumulator) Touch(category string) {
	a.touch(category)
}

func (a *Accumulator) touch(category string) {
	a.categories[category] = true
}

// Distribution returns a fresh copy of the accumulated weights.
func (a *Accumulator) Distribution() Distribution {
	d := make(Distribution, len(a.categories))
	for name := range a.categories {
		d[name] = make(Histogram)
	}
	for k, w := range a.cells {
		d[k.Category][k.Hour] = w
	}
	return d
}
