// Package daypart defines the ordered day-part categories, the run configuration
// and the error taxonomy of the interval resolution engine.
package daypart

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Regime declares how raw hour mentions should be read.
type Regime string

const (
	// RegimeResolved hours are already on a 24-hour clock (0-23 or 1-24).
	RegimeResolved Regime = "resolved"
	// RegimeTwelveHour hours are 1-12 and need an AM/PM decision.
	RegimeTwelveHour Regime = "twelve_hour"
)

// Contains reports whether a raw hour is inside the regime's input domain.
func (r Regime) Contains(h int) bool {
	if r == RegimeTwelveHour {
		return h >= 1 && h <= HalfDayHours
	}
	return h >= 0 && h <= LastHour
}

// Objective selects what the optimizer maximizes.
type Objective string

const (
	// ObjectiveCoverage maximizes the observation weight falling inside each interval.
	ObjectiveCoverage Objective = "coverage"
	// ObjectiveBoundaries maximizes the start-weight of each chosen start hour
	// plus the end-weight of each chosen end hour.
	ObjectiveBoundaries Objective = "boundaries"
)

// DefaultMinDuration is the minimum interval length when none is configured.
const DefaultMinDuration = 1

// Category is one day-part label.
type Category struct {
	Name          string `yaml:"name"`
	WrapsMidnight bool   `yaml:"wraps_midnight"`
	MinDuration   int    `yaml:"min_duration"`
}

// UnmarshalYAML accepts either a bare name or a full mapping.
func (c *Category) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Name = node.Value
		return nil
	}
	type plain Category
	return node.Decode((*plain)(c))
}

// Config is the static configuration of one run.
type Config struct {
	MinDurations    map[string]int `yaml:"min_durations"`
	Wrap            string         `yaml:"wrap"`
	Regime          Regime         `yaml:"regime"`
	Objective       Objective      `yaml:"objective"`
	Categories      []Category     `yaml:"categories"`
	MinDuration     int            `yaml:"min_duration"`
	MaxWrapDuration int            `yaml:"max_wrap_duration"`
	TimeLimit       time.Duration  `yaml:"time_limit"`
}

// CanonicalCategories is the five-part day used by the studies.
var CanonicalCategories = []string{"morning", "noon", "afternoon", "evening", "night"}

// Default returns the canonical five-category configuration.
func Default() Config {
	return New(CanonicalCategories, "night")
}

// New returns a configuration over the given ordered names with the given wrap category.
func New(names []string, wrap string) Config {
	cats := make([]Category, len(names))
	for i, n := range names {
		cats[i] = Category{Name: n}
	}
	return Config{
		Categories:  cats,
		Wrap:        wrap,
		Regime:      RegimeTwelveHour,
		Objective:   ObjectiveCoverage,
		MinDuration: DefaultMinDuration,
		TimeLimit:   10 * time.Second,
	}
}

// Ordered returns the categories in declared order with wrap flags and
// minimum durations filled in. It fails with ErrInvalidConfiguration.
func (c Config) Ordered() ([]Category, error) {
	if len(c.Categories) == 0 {
		return nil, fmt.Errorf("%w: empty category list", ErrInvalidConfiguration)
	}

	out := make([]Category, len(c.Categories))
	seen := make(map[string]bool, len(c.Categories))
	wraps := 0
	wrapFound := c.Wrap == ""
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("%w: category %d has no name", ErrInvalidConfiguration, i)
		}
		if seen[cat.Name] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidConfiguration, cat.Name)
		}
		seen[cat.Name] = true

		if cat.Name == c.Wrap {
			cat.WrapsMidnight = true
			wrapFound = true
		}
		if cat.WrapsMidnight {
			wraps++
		}

		switch {
		case cat.MinDuration > 0:
		case c.MinDurations[cat.Name] > 0:
			cat.MinDuration = c.MinDurations[cat.Name]
		case c.MinDuration > 0:
			cat.MinDuration = c.MinDuration
		default:
			cat.MinDuration = DefaultMinDuration
		}
		out[i] = cat
	}

	if !wrapFound {
		return nil, fmt.Errorf("%w: wrap category %q not in category list", ErrInvalidConfiguration, c.Wrap)
	}
	for name := range c.MinDurations {
		if !seen[name] {
			return nil, fmt.Errorf("%w: min_durations names unknown category %q", ErrInvalidConfiguration, name)
		}
	}
	switch {
	case wraps > 1:
		return nil, fmt.Errorf("%w: %d wrap categories declared, want exactly one", ErrInvalidConfiguration, wraps)
	case wraps == 0 && len(out) > 1:
		return nil, fmt.Errorf("%w: no wrap category declared", ErrInvalidConfiguration)
	}
	return out, nil
}

// Validate checks the whole configuration before any solve is attempted.
func (c Config) Validate() error {
	if _, err := c.Ordered(); err != nil {
		return err
	}
	switch c.Regime {
	case RegimeResolved, RegimeTwelveHour:
	default:
		return fmt.Errorf("%w: unknown regime %q", ErrInvalidConfiguration, c.Regime)
	}
	switch c.Objective {
	case ObjectiveCoverage, ObjectiveBoundaries:
	default:
		return fmt.Errorf("%w: unknown objective %q", ErrInvalidConfiguration, c.Objective)
	}
	if c.MinDuration < 0 {
		return fmt.Errorf("%w: negative min_duration", ErrInvalidConfiguration)
	}
	for name, d := range c.MinDurations {
		if d < 0 {
			return fmt.Errorf("%w: negative min_duration for %q", ErrInvalidConfiguration, name)
		}
	}
	if c.MaxWrapDuration < 0 {
		return fmt.Errorf("%w: negative max_wrap_duration", ErrInvalidConfiguration)
	}
	if c.TimeLimit < 0 {
		return fmt.Errorf("%w: negative time_limit", ErrInvalidConfiguration)
	}
	return nil
}

// Index returns the position of a category name in the declared order.
func (c Config) Index(name string) (int, bool) {
	for i, cat := range c.Categories {
		if cat.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Names returns the category names in declared order.
func (c Config) Names() []string {
	names := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		names[i] = cat.Name
	}
	return names
}
