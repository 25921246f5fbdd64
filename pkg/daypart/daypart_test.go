package daypart

import (
	"errors"
	"testing"
	"time"
)

func TestOrderedValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"canonical", Default(), false},
		{"empty list", Config{Wrap: "night"}, true},
		{"wrap not in list", New([]string{"morning", "evening"}, "night"), true},
		{"no wrap with two categories", New([]string{"morning", "evening"}, ""), true},
		{"single category without wrap", New([]string{"day"}, ""), false},
		{"duplicate name", New([]string{"morning", "morning", "night"}, "night"), true},
		{
			"two wrap categories",
			Config{
				Categories: []Category{{Name: "evening", WrapsMidnight: true}, {Name: "night"}},
				Wrap:       "night",
			},
			true,
		},
		{
			"unknown min_durations key",
			Config{Categories: []Category{{Name: "day"}, {Name: "night"}}, Wrap: "night", MinDurations: map[string]int{"dusk": 2}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Ordered()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Ordered() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Ordered() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestOrderedMinDurations(t *testing.T) {
	cfg := New([]string{"morning", "noon", "night"}, "night")
	cfg.MinDuration = 2
	cfg.MinDurations = map[string]int{"night": 4}
	cfg.Categories[1].MinDuration = 3

	cats, err := cfg.Ordered()
	if err != nil {
		t.Fatalf("Ordered() error = %v", err)
	}
	want := []int{2, 3, 4}
	for i, c := range cats {
		if c.MinDuration != want[i] {
			t.Errorf("%s min duration = %d, want %d", c.Name, c.MinDuration, want[i])
		}
	}
	if !cats[2].WrapsMidnight || cats[0].WrapsMidnight {
		t.Errorf("wrap flags = %v %v %v, want only night", cats[0].WrapsMidnight, cats[1].WrapsMidnight, cats[2].WrapsMidnight)
	}
}

func TestValidate(t *testing.T) {
	bad := Default()
	bad.Regime = "sundial"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Validate() with unknown regime = %v, want ErrInvalidConfiguration", err)
	}

	bad = Default()
	bad.Objective = "vibes"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Validate() with unknown objective = %v, want ErrInvalidConfiguration", err)
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Validate() on default = %v", err)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
categories:
  - morning
  - name: night
    wraps_midnight: true
    min_duration: 3
regime: resolved
max_wrap_duration: 10
time_limit: 2s
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Regime != RegimeResolved {
		t.Errorf("Regime = %q, want resolved", cfg.Regime)
	}
	if cfg.Objective != ObjectiveCoverage {
		t.Errorf("Objective = %q, want default coverage", cfg.Objective)
	}
	if cfg.TimeLimit != 2*time.Second {
		t.Errorf("TimeLimit = %v, want 2s", cfg.TimeLimit)
	}
	cats, err := cfg.Ordered()
	if err != nil {
		t.Fatalf("Ordered() error = %v", err)
	}
	if len(cats) != 2 || !cats[1].WrapsMidnight || cats[1].MinDuration != 3 || cats[0].MinDuration != 1 {
		t.Errorf("Ordered() = %+v", cats)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if len(cfg.Categories) != 5 || cfg.Wrap != "night" {
		t.Errorf("Parse(nil) = %+v, want canonical categories", cfg)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	if _, err := Parse([]byte("wrapp: night\n")); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Parse() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestRegimeContains(t *testing.T) {
	tests := []struct {
		regime Regime
		hour   int
		want   bool
	}{
		{RegimeTwelveHour, 0, false},
		{RegimeTwelveHour, 1, true},
		{RegimeTwelveHour, 12, true},
		{RegimeTwelveHour, 15, false},
		{RegimeResolved, 0, true},
		{RegimeResolved, 24, true},
		{RegimeResolved, 25, false},
		{RegimeResolved, -1, false},
	}
	for _, tt := range tests {
		if got := tt.regime.Contains(tt.hour); got != tt.want {
			t.Errorf("%s.Contains(%d) = %v, want %v", tt.regime, tt.hour, got, tt.want)
		}
	}
}
