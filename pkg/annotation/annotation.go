// Package annotation reads crowd-sourced start/end times for day-part
// expressions from MTurk batch result files and turns them into start and
// end hour distributions.
package annotation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
)

// DefaultDominance is the row count above which a single answer language
// is taken to dominate a batch.
const DefaultDominance = 90

// AM/PM correction moves an answer by twelve hours when that brings it
// more than this many hours closer to the edge mean.
const flipGain = 6.0

const (
	langColumn    = "Answer.lang"
	commentColumn = "Answer.comment"
	otherStart    = "Answer.other_start"
	otherEnd      = "Answer.other_end"
	otherSource   = "Answer.other_source"
	otherTrans    = "Answer.other_translation"
)

// Answers naming a language instead of an expression.
var languageNames = map[string]bool{
	"english": true, "hindi": true, "italian": true,
	"german": true, "japanese": true, "portuguese": true,
}

// ErrMissingColumn reports a batch file without a required answer column.
var ErrMissingColumn = errors.New("missing column")

// Edges holds the answers for one expression as hours of the day in [0, 24).
type Edges struct {
	Start []float64
	End   []float64
}

// Stats counts what Read kept and dropped.
type Stats struct {
	Rows          int
	Incomplete    int
	OtherLanguage int
	Corrected     int
}

// Batch is the cleaned answers of one batch file.
type Batch struct {
	Times map[string]*Edges
	// Translations holds the lowercased local names given for each
	// expression.
	Translations map[string][]string
	// Additional holds times for expressions the annotators added
	// themselves, keyed by the lowercased expression.
	Additional  map[string]*Edges
	Comments    map[string]int
	Lang        string
	Expressions []string
	Stats       Stats
}

// Option configures Read.
type Option func(*reader)

type reader struct {
	expressions []string
	dominance   int
}

// WithExpressions sets the expressions to read, in order. The order
// matters for AM/PM correction, which compares each edge with the
// previous one.
func WithExpressions(names ...string) Option {
	return func(r *reader) {
		r.expressions = names
	}
}

// WithDominance overrides DefaultDominance.
func WithDominance(n int) Option {
	return func(r *reader) {
		r.dominance = n
	}
}

// Read parses a batch CSV. Rows with a missing or unreadable start or end
// answer are dropped. When one language answers more than the dominance
// threshold of rows, rows in any language other than lang are dropped.
func Read(in io.Reader, lang string, opts ...Option) (*Batch, error) {
	rd := &reader{expressions: daypart.CanonicalCategories, dominance: DefaultDominance}
	for _, opt := range opts {
		opt(rd)
	}

	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	if _, ok := cols[langColumn]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, langColumn)
	}
	for _, exp := range rd.expressions {
		for _, edge := range []string{"start", "end"} {
			if _, ok := cols[column(exp, edge)]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column(exp, edge))
			}
		}
	}

	type row struct {
		lang  string
		times map[string][2]float64
		rec   []string
	}
	var rows []row
	b := &Batch{
		Lang:         lang,
		Expressions:  rd.expressions,
		Times:        make(map[string]*Edges),
		Translations: make(map[string][]string),
		Additional:   make(map[string]*Edges),
		Comments:     make(map[string]int),
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading batch: %w", err)
		}
		b.Stats.Rows++
		r := row{lang: cell(rec, cols[langColumn]), times: make(map[string][2]float64), rec: rec}
		ok := true
		for _, exp := range rd.expressions {
			start, err1 := ParseClock(cell(rec, cols[column(exp, "start")]))
			end, err2 := ParseClock(cell(rec, cols[column(exp, "end")]))
			if err1 != nil || err2 != nil {
				ok = false
				break
			}
			r.times[exp] = [2]float64{start, end}
		}
		if !ok {
			b.Stats.Incomplete++
			continue
		}
		rows = append(rows, r)
	}

	counts := make(map[string]int)
	top := 0
	for _, r := range rows {
		counts[r.lang]++
		top = max(top, counts[r.lang])
	}
	want := strings.ToUpper(lang)
	for _, exp := range rd.expressions {
		b.Times[exp] = &Edges{}
	}
	for _, r := range rows {
		if top > rd.dominance && !strings.EqualFold(r.lang, want) {
			b.Stats.OtherLanguage++
			continue
		}
		for _, exp := range rd.expressions {
			t := r.times[exp]
			b.Times[exp].Start = append(b.Times[exp].Start, t[0])
			b.Times[exp].End = append(b.Times[exp].End, t[1])
			if tr := strings.ToLower(optional(r.rec, cols, column(exp, "translation"))); tr != "" {
				b.Translations[exp] = append(b.Translations[exp], tr)
			}
		}
		b.addOther(r.rec, cols)
		if c := strings.ToLower(optional(r.rec, cols, commentColumn)); c != "" {
			b.Comments[c]++
		}
	}
	return b, nil
}

// addOther records an expression the annotator added. English batches name
// it in the source column, others in the translation column. Rows missing a
// name or either time are skipped.
func (b *Batch) addOther(rec []string, cols map[string]int) {
	nameCol := otherTrans
	if strings.EqualFold(b.Lang, "en") {
		nameCol = otherSource
	}
	if optional(rec, cols, otherSource) == "" {
		return
	}
	name := strings.ToLower(optional(rec, cols, nameCol))
	if name == "" || name == strings.ToLower(b.Lang) || languageNames[name] {
		return
	}
	start, err1 := ParseClock(optional(rec, cols, otherStart))
	end, err2 := ParseClock(optional(rec, cols, otherEnd))
	if err1 != nil || err2 != nil {
		return
	}
	e := b.Additional[name]
	if e == nil {
		e = &Edges{}
		b.Additional[name] = e
	}
	e.Start = append(e.Start, start)
	e.End = append(e.End, end)
}

func column(exp, edge string) string {
	return "Answer." + exp + "_" + edge
}

func cell(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// optional returns the named cell, or "" when the batch has no such column.
func optional(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok {
		return ""
	}
	return cell(rec, i)
}

// ParseClock reads "19:30", "7:30 PM", "7 p.m." or "7" as hours since
// midnight.
func ParseClock(s string) (float64, error) {
	v := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ".", ""))
	if v == "" {
		return 0, errors.New("empty time")
	}
	suffix := ""
	for _, sfx := range []string{"am", "pm"} {
		if strings.HasSuffix(v, sfx) {
			suffix = sfx
			v = strings.TrimSpace(strings.TrimSuffix(v, sfx))
		}
	}
	hs, ms, _ := strings.Cut(v, ":")
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", s, err)
	}
	m := 0
	if ms != "" {
		if m, err = strconv.Atoi(ms); err != nil {
			return 0, fmt.Errorf("time %q: %w", s, err)
		}
	}
	if m < 0 || m > 59 || h < 0 || h > 24 || (suffix != "" && (h < 1 || h > 12)) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	switch {
	case suffix == "pm" && h < 12:
		h += 12
	case suffix == "am" && h == 12:
		h = 0
	}
	return math.Mod(float64(h)+float64(m)/60, 24), nil
}

// CorrectAMPM flips answers that look like AM/PM mix-ups: an answer moves
// by twelve hours when that brings it more than six hours closer to the
// mean of its edge and, after the first edge, past the mean of the
// previous edge. Edges are visited start then end, expression by
// expression. It returns the number of answers changed.
func (b *Batch) CorrectAMPM(logger *slog.Logger) int {
	total := 0
	after, hasAfter := 0.0, false
	for _, exp := range b.Expressions {
		e := b.Times[exp]
		if e == nil {
			continue
		}
		for _, edge := range []struct {
			name  string
			times []float64
		}{{"start", e.Start}, {"end", e.End}} {
			n := correct(edge.times, after, hasAfter)
			if n > 0 {
				logger.Debug("corrected AM/PM answers", "expression", exp, "edge", edge.name, "count", n)
			}
			total += n
			if len(edge.times) > 0 {
				after, hasAfter = mean(edge.times), true
			}
		}
	}
	b.Stats.Corrected += total
	return total
}

func correct(times []float64, after float64, hasAfter bool) int {
	if len(times) == 0 {
		return 0
	}
	avg := mean(times)
	n := 0
	for i, t := range times {
		flipped := t + 12
		if t >= 12 {
			flipped = t - 12
		}
		if math.Abs(avg-t)-math.Abs(avg-flipped) > flipGain && (!hasAfter || flipped > after) {
			times[i] = flipped
			n++
		}
	}
	return n
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// Boundaries counts answers per whole hour on the 1..24 clock.
func (b *Batch) Boundaries() distribution.Boundaries {
	return boundaries(b.Expressions, b.Times)
}

// AdditionalBoundaries counts the answers for annotator-added expressions
// the same way.
func (b *Batch) AdditionalBoundaries() distribution.Boundaries {
	names := make([]string, 0, len(b.Additional))
	for name := range b.Additional {
		names = append(names, name)
	}
	return boundaries(names, b.Additional)
}

func boundaries(names []string, times map[string]*Edges) distribution.Boundaries {
	start, end := distribution.NewAccumulator(), distribution.NewAccumulator()
	for _, exp := range names {
		start.Touch(exp)
		end.Touch(exp)
		e := times[exp]
		if e == nil {
			continue
		}
		for _, t := range e.Start {
			_ = start.Add(observation(exp, t)) //nolint:errcheck // unit weight
		}
		for _, t := range e.End {
			_ = end.Add(observation(exp, t)) //nolint:errcheck // unit weight
		}
	}
	return distribution.Boundaries{Start: start.Distribution(), End: end.Distribution()}
}

func observation(exp string, t float64) distribution.Observation {
	return distribution.Observation{Category: exp, Hour: daypart.NormalizeHour(int(math.Floor(t))), Weight: 1}
}
