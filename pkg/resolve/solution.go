package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
)

// Interval is the resolved time span of one category.
//
// Under the coverage objective Hours holds the category's observation
// weight re-aggregated under resolved hours. Under the boundaries objective
// StartHours and EndHours hold the resolved start and end evidence instead.
type Interval struct {
	Hours         distribution.Histogram
	StartHours    distribution.Histogram
	EndHours      distribution.Histogram
	Category      string
	Start         int
	End           int
	WrapsMidnight bool
}

// Duration returns the interval length in hours.
func (iv Interval) Duration() int {
	return daypart.Duration(iv.Start, iv.End, iv.WrapsMidnight)
}

// Contains reports whether resolved hour h falls inside the interval.
func (iv Interval) Contains(h int) bool {
	return daypart.Contains(iv.Start, iv.End, h, iv.WrapsMidnight)
}

// Solution is the outcome of one solve: an interval per category, in
// configured order.
type Solution struct {
	Objective daypart.Objective
	Intervals []Interval
	// Value is the optimal objective value.
	Value float64
}

// Interval returns the interval of the named category.
func (s *Solution) Interval(category string) (Interval, bool) {
	for _, iv := range s.Intervals {
		if iv.Category == category {
			return iv, true
		}
	}
	return Interval{}, false
}

// Coverage returns the total weight that falls inside its category's
// interval. Under the coverage objective it equals Value.
func (s *Solution) Coverage() float64 {
	total := 0.0
	for _, iv := range s.Intervals {
		for h, w := range iv.Hours {
			if iv.Contains(h) {
				total += w
			}
		}
	}
	return total
}

// MarshalJSON writes categories in configured order:
//
//	{"morning": {"start": 6, "end": 11, "6": 3, "9": 10}, ...}
//
// Boundaries solutions carry "start_distribution" and "end_distribution"
// objects in place of the flat hour keys.
func (s *Solution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, iv := range s.Intervals {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, iv.Category); err != nil {
			return nil, err
		}
		buf.WriteString(`{"start":`)
		buf.WriteString(strconv.Itoa(iv.Start))
		buf.WriteString(`,"end":`)
		buf.WriteString(strconv.Itoa(iv.End))

		if s.Objective == daypart.ObjectiveBoundaries {
			buf.WriteString(`,"start_distribution":`)
			if err := writeHistogram(&buf, iv.StartHours); err != nil {
				return nil, err
			}
			buf.WriteString(`,"end_distribution":`)
			if err := writeHistogram(&buf, iv.EndHours); err != nil {
				return nil, err
			}
		} else {
			for _, h := range iv.Hours.Hours() {
				buf.WriteString(`,"`)
				buf.WriteString(strconv.Itoa(h))
				buf.WriteString(`":`)
				if err := writeFloat(&buf, iv.Hours[h]); err != nil {
					return nil, err
				}
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding weight %v: %w", f, err)
	}
	buf.Write(b)
	return nil
}

func writeHistogram(buf *bytes.Buffer, h distribution.Histogram) error {
	buf.WriteByte('{')
	for i, hr := range h.Hours() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(hr))
		buf.WriteString(`":`)
		if err := writeFloat(buf, h[hr]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// Write encodes the solution as indented JSON.
func (s *Solution) Write(w io.Writer) error {
	raw, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(w)
	return err
}

// WriteFile writes the solution to path, replacing any existing file only
// once the full document has been written.
func (s *Solution) WriteFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if err := s.Write(f); err != nil {
		f.Close()      //nolint:errcheck // already failing
		os.Remove(tmp) //nolint:errcheck // best effort
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
