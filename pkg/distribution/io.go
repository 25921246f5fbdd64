package distribution

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
)

// Keys that may sit next to hour keys in a previously written result.
const (
	keyStart     = "start"
	keyEnd       = "end"
	keyStartDist = "start_distribution"
	keyEndDist   = "end_distribution"
)

// ReadCoverage decodes {"category": {"hour": weight, ...}, ...}.
// Interval bounds left in a previous output ("start", "end") are skipped.
func ReadCoverage(r io.Reader) (Distribution, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding distribution: %w", err)
	}

	acc := NewAccumulator()
	for category, cells := range raw {
		acc.Touch(category)
		for key, value := range cells {
			if key == keyStart || key == keyEnd || key == keyStartDist || key == keyEndDist {
				continue
			}
			if err := addCell(acc, category, key, value); err != nil {
				return nil, err
			}
		}
	}
	return acc.Distribution(), nil
}

// ReadBoundaries decodes {"category": {"start": {"hour": w}, "end": {"hour": w}}, ...}.
// The "start_distribution"/"end_distribution" keys written by the engine are
// accepted too, so a result can be fed back in.
func ReadBoundaries(r io.Reader) (Boundaries, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Boundaries{}, fmt.Errorf("decoding boundaries: %w", err)
	}

	start, end := NewAccumulator(), NewAccumulator()
	for category, edges := range raw {
		start.Touch(category)
		end.Touch(category)
		for key, value := range edges {
			var acc *Accumulator
			switch key {
			case keyStart, keyStartDist:
				acc = start
			case keyEnd, keyEndDist:
				acc = end
			default:
				return Boundaries{}, fmt.Errorf("%w: %s has unknown edge %q", daypart.ErrInputDomain, category, key)
			}

			// A solved bound ("start": 6) rather than a distribution.
			var bound float64
			if json.Unmarshal(value, &bound) == nil {
				continue
			}
			var cells map[string]json.RawMessage
			if err := json.Unmarshal(value, &cells); err != nil {
				return Boundaries{}, fmt.Errorf("%w: %s %s is neither an hour nor a distribution: %w",
					daypart.ErrInputDomain, category, key, err)
			}
			for hour, w := range cells {
				if err := addCell(acc, category, hour, w); err != nil {
					return Boundaries{}, err
				}
			}
		}
	}
	return Boundaries{Start: start.Distribution(), End: end.Distribution()}, nil
}

func addCell(acc *Accumulator, category, hourKey string, value json.RawMessage) error {
	hour, err := strconv.Atoi(hourKey)
	if err != nil {
		return fmt.Errorf("%w: %s has non-integer hour %q", daypart.ErrInputDomain, category, hourKey)
	}
	var w float64
	if err := json.Unmarshal(value, &w); err != nil {
		return fmt.Errorf("%w: %s hour %d weight: %w", daypart.ErrInputDomain, category, hour, err)
	}
	return acc.Add(Observation{Category: category, Hour: hour, Weight: w})
}

// ReadCoverageFile reads a coverage distribution from disk.
func ReadCoverageFile(path string) (Distribution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening distribution: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return ReadCoverage(f)
}

// ReadBoundariesFile reads start/end distributions from disk.
func ReadBoundariesFile(path string) (Boundaries, error) {
	f, err := os.Open(path)
	if err != nil {
		return Boundaries{}, fmt.Errorf("opening boundaries: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return ReadBoundaries(f)
}

// WriteCoverage encodes a distribution in the format ReadCoverage accepts.
func WriteCoverage(w io.Writer, d Distribution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stringKeys(d))
}

// WriteBoundaries encodes start/end distributions in the format ReadBoundaries accepts.
func WriteBoundaries(w io.Writer, b Boundaries) error {
	out := make(map[string]map[string]map[string]float64)
	for name, hist := range stringKeys(b.Start) {
		out[name] = map[string]map[string]float64{keyStart: hist, keyEnd: {}}
	}
	for name, hist := range stringKeys(b.End) {
		if out[name] == nil {
			out[name] = map[string]map[string]float64{keyStart: {}}
		}
		out[name][keyEnd] = hist
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func stringKeys(d Distribution) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(d))
	for name, hist := range d {
		m := make(map[string]float64, len(hist))
		for h, w := range hist {
			m[strconv.Itoa(h)] = w
		}
		out[name] = m
	}
	return out
}
