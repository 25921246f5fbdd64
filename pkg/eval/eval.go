// Package eval scores resolved day-part intervals against gold start and
// end times averaged from human annotations.
package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/codeGROOVE-dev/dayparts/pkg/annotation"
	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/resolve"
)

const minutesPerDay = 24 * 60

// Span is a time interval in fractional hours of the day. End before Start
// means the span wraps midnight.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Span) contains(t float64) bool {
	if s.Start <= s.End {
		return s.Start <= t && t <= s.End
	}
	return t >= s.Start || t <= s.End
}

// Gold maps each category to its mean annotated span.
type Gold map[string]Span

// GoldFromBatch averages the start and end answers of every expression in
// the batch. Expressions without answers are left out.
func GoldFromBatch(b *annotation.Batch) Gold {
	g := make(Gold, len(b.Times))
	for exp, e := range b.Times {
		if len(e.Start) == 0 || len(e.End) == 0 {
			continue
		}
		g[exp] = Span{Start: mean(e.Start), End: mean(e.End)}
	}
	return g
}

// ReadGold decodes {"morning": {"start": 6.2, "end": 11.5}, ...}.
func ReadGold(r io.Reader) (Gold, error) {
	var g Gold
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decoding gold spans: %w", err)
	}
	for name, s := range g {
		if s.Start < 0 || s.Start > 24 || s.End < 0 || s.End > 24 {
			return nil, fmt.Errorf("%w: gold span %s %v outside the day", daypart.ErrInputDomain, name, s)
		}
	}
	return g, nil
}

// ReadGoldFile reads gold spans from disk.
func ReadGoldFile(path string) (Gold, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gold spans: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return ReadGold(f)
}

// Write encodes g as ReadGold expects it.
func (g Gold) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

// Report compares one solution with the gold spans.
type Report struct {
	// Accuracy is the share of gold-labelled minutes that the solution
	// labels with the same category.
	Accuracy float64
	// StartDiff and EndDiff are mean absolute distances in hours, measured
	// around the clock.
	StartDiff float64
	EndDiff   float64
	// Compared counts the categories present in both.
	Compared int
}

// Score labels every minute of the day with the first category, in
// solution order, whose span contains it, once from the solution and once
// from the gold spans, and compares the two.
func Score(sol *resolve.Solution, gold Gold) (Report, error) {
	var order []string
	pred := make(map[string]Span, len(sol.Intervals))
	for _, iv := range sol.Intervals {
		order = append(order, iv.Category)
		pred[iv.Category] = Span{
			Start: float64(iv.Start % daypart.HoursPerDay),
			End:   float64(iv.End % daypart.HoursPerDay),
		}
	}

	var r Report
	for _, name := range order {
		g, ok := gold[name]
		if !ok {
			continue
		}
		p := pred[name]
		r.StartDiff += clockDistance(p.Start, g.Start)
		r.EndDiff += clockDistance(p.End, g.End)
		r.Compared++
	}
	if r.Compared == 0 {
		return Report{}, fmt.Errorf("%w: no category has gold spans", daypart.ErrInputDomain)
	}
	r.StartDiff /= float64(r.Compared)
	r.EndDiff /= float64(r.Compared)

	want, got := label(order, gold), label(order, pred)
	labelled, agree := 0, 0
	for m := range minutesPerDay {
		if want[m] == "" {
			continue
		}
		labelled++
		if got[m] == want[m] {
			agree++
		}
	}
	if labelled > 0 {
		r.Accuracy = float64(agree) / float64(labelled)
	}
	return r, nil
}

func label(order []string, spans map[string]Span) []string {
	out := make([]string, minutesPerDay)
	for m := range out {
		t := float64(m) / 60
		for _, name := range order {
			if s, ok := spans[name]; ok && s.contains(t) {
				out[m] = name
				break
			}
		}
	}
	return out
}

func clockDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 24)
	return math.Min(d, 24-d)
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
