// Package distribution holds the per-category hour distributions that feed the
// interval resolution engine, and the glue that reads and writes them.
package distribution

import (
	"fmt"
	"math"
	"slices"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
)

// Observation is one piece of evidence: a category mentioned together with an hour.
type Observation struct {
	Category string
	Hour     int
	Weight   float64
}

// Key identifies a (category, hour) cell.
type Key struct {
	Category string
	Hour     int
}

// Histogram maps an hour to its summed weight.
type Histogram map[int]float64

// Hours returns the histogram's hours in ascending order.
func (h Histogram) Hours() []int {
	hours := make([]int, 0, len(h))
	for hr := range h {
		hours = append(hours, hr)
	}
	slices.Sort(hours)
	return hours
}

// Total returns the summed weight.
func (h Histogram) Total() float64 {
	total := 0.0
	for _, w := range h {
		total += w
	}
	return total
}

// Distribution maps a category name to its histogram.
type Distribution map[string]Histogram

// Categories returns the category names in sorted order.
func (d Distribution) Categories() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate rejects categories missing from cfg and hours outside the
// regime's domain. Errors wrap daypart.ErrInputDomain.
func (d Distribution) Validate(cfg daypart.Config) error {
	for _, name := range d.Categories() {
		if _, ok := cfg.Index(name); !ok {
			return fmt.Errorf("%w: unknown category %q", daypart.ErrInputDomain, name)
		}
		for _, h := range d[name].Hours() {
			if !cfg.Regime.Contains(h) {
				return fmt.Errorf("%w: %s hour %d outside %s domain", daypart.ErrInputDomain, name, h, cfg.Regime)
			}
			if w := d[name][h]; w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("%w: %s hour %d has weight %v", daypart.ErrInputDomain, name, h, w)
			}
		}
	}
	return nil
}

// Normalize returns a copy in which resolved-regime hours are mapped onto
// 1..24 (0 becomes 24) and colliding cells are summed. Twelve-hour input is
// copied unchanged.
func (d Distribution) Normalize(regime daypart.Regime) Distribution {
	acc := NewAccumulator()
	for name, hist := range d {
		acc.touch(name)
		for h, w := range hist {
			if regime == daypart.RegimeResolved {
				h = daypart.NormalizeHour(h)
			}
			acc.cells[Key{Category: name, Hour: h}] += w
		}
	}
	return acc.Distribution()
}

// Boundaries holds separate start-hour and end-hour distributions, as
// produced by human annotation or start/end language-model templates.
type Boundaries struct {
	Start Distribution
	End   Distribution
}

// Validate applies Distribution.Validate to both edges.
func (b Boundaries) Validate(cfg daypart.Config) error {
	if err := b.Start.Validate(cfg); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := b.End.Validate(cfg); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	return nil
}

// Normalize applies Distribution.Normalize to both edges.
func (b Boundaries) Normalize(regime daypart.Regime) Boundaries {
	return Boundaries{Start: b.Start.Normalize(regime), End: b.End.Normalize(regime)}
}
