package distribution

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
)

func TestAccumulatorSumsSharedCells(t *testing.T) {
	acc := NewAccumulator()
	obs := []Observation{
		{Category: "morning", Hour: 9, Weight: 2},
		{Category: "morning", Hour: 9, Weight: 3},
		{Category: "night", Hour: 11, Weight: 1},
	}
	if err := acc.AddAll(obs); err != nil {
		t.Fatalf("AddAll() error = %v", err)
	}
	acc.Touch("noon")

	want := Distribution{
		"morning": {9: 5},
		"night":   {11: 1},
		"noon":    {},
	}
	if diff := cmp.Diff(want, acc.Distribution()); diff != "" {
		t.Errorf("Distribution() mismatch (-want +got):\n%s", diff)
	}
}

func TestAccumulatorRejectsNegativeWeight(t *testing.T) {
	acc := NewAccumulator()
	err := acc.Add(Observation{Category: "morning", Hour: 9, Weight: -1})
	if !errors.Is(err, daypart.ErrInputDomain) {
		t.Errorf("Add() error = %v, want ErrInputDomain", err)
	}
}

func TestDistributionCopiesAreIndependent(t *testing.T) {
	acc := NewAccumulator()
	if err := acc.Add(Observation{Category: "noon", Hour: 12, Weight: 1}); err != nil {
		t.Fatal(err)
	}
	d := acc.Distribution()
	d["noon"][12] = 100
	if got := acc.Distribution()["noon"][12]; got != 1 {
		t.Errorf("accumulator changed through copy: weight = %v", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := daypart.Default()

	tests := []struct {
		name    string
		regime  daypart.Regime
		dist    Distribution
		wantErr bool
	}{
		{"valid twelve hour", daypart.RegimeTwelveHour, Distribution{"morning": {9: 1}}, false},
		{"hour 15 under twelve hour", daypart.RegimeTwelveHour, Distribution{"morning": {15: 1}}, true},
		{"hour 0 under twelve hour", daypart.RegimeTwelveHour, Distribution{"night": {0: 1}}, true},
		{"hour 0 resolved", daypart.RegimeResolved, Distribution{"night": {0: 1}}, false},
		{"hour 25 resolved", daypart.RegimeResolved, Distribution{"night": {25: 1}}, true},
		{"unknown category", daypart.RegimeTwelveHour, Distribution{"dusk": {7: 1}}, true},
		{"negative weight", daypart.RegimeTwelveHour, Distribution{"noon": {12: -2}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.Regime = tt.regime
			err := tt.dist.Validate(c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, daypart.ErrInputDomain) {
				t.Errorf("Validate() error = %v, want ErrInputDomain", err)
			}
		})
	}
}

func TestNormalizeMapsMidnight(t *testing.T) {
	d := Distribution{"night": {0: 2, 24: 1, 23: 4}}
	got := d.Normalize(daypart.RegimeResolved)
	want := Distribution{"night": {24: 3, 23: 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}

	same := d.Normalize(daypart.RegimeTwelveHour)
	if diff := cmp.Diff(d, same); diff != "" {
		t.Errorf("Normalize(twelve_hour) changed input (-want +got):\n%s", diff)
	}
}

func TestReadCoverageSkipsBounds(t *testing.T) {
	in := `{"morning": {"start": 6, "end": 11, "9": 10, "3": 1.5}, "noon": {}}`
	got, err := ReadCoverage(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCoverage() error = %v", err)
	}
	want := Distribution{"morning": {9: 10, 3: 1.5}, "noon": {}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadCoverage() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCoverageRejectsBadHour(t *testing.T) {
	_, err := ReadCoverage(strings.NewReader(`{"morning": {"nine": 1}}`))
	if !errors.Is(err, daypart.ErrInputDomain) {
		t.Errorf("ReadCoverage() error = %v, want ErrInputDomain", err)
	}
}

func TestReadBoundaries(t *testing.T) {
	in := `{"morning": {"start": {"6": 3, "7": 1}, "end": {"11": 4}},
	        "night": {"start_distribution": {"21": 2}, "end_distribution": {"1": 2}, "start": 21, "end": 1}}`
	got, err := ReadBoundaries(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadBoundaries() error = %v", err)
	}
	want := Boundaries{
		Start: Distribution{"morning": {6: 3, 7: 1}, "night": {21: 2}},
		End:   Distribution{"morning": {11: 4}, "night": {1: 2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadBoundaries() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBoundariesRejectsMalformedEdge(t *testing.T) {
	for _, in := range []string{
		`{"morning": {"start": [6, 7]}}`,
		`{"morning": {"start_distribution": "6"}}`,
		`{"morning": {"end": true}}`,
	} {
		if _, err := ReadBoundaries(strings.NewReader(in)); !errors.Is(err, daypart.ErrInputDomain) {
			t.Errorf("ReadBoundaries(%s) error = %v, want ErrInputDomain", in, err)
		}
	}
}

func TestWriteBoundariesReadsBack(t *testing.T) {
	b := Boundaries{
		Start: Distribution{"morning": {6: 3}},
		End:   Distribution{"morning": {11: 4}, "night": {2: 1}},
	}
	var buf bytes.Buffer
	if err := WriteBoundaries(&buf, b); err != nil {
		t.Fatalf("WriteBoundaries() error = %v", err)
	}
	got, err := ReadBoundaries(&buf)
	if err != nil {
		t.Fatalf("ReadBoundaries() error = %v", err)
	}
	want := Boundaries{
		Start: Distribution{"morning": {6: 3}, "night": {}},
		End:   Distribution{"morning": {11: 4}, "night": {2: 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
