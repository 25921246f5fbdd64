// Package corpus mines raw text for time expressions that co-occur with a
// cardinal number, producing the coverage distribution the engine consumes.
package corpus

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/lexicon"
)

// Window is the number of tokens searched on each side of an expression.
const Window = 3

// Stats counts what a scan saw.
type Stats struct {
	Lines       int
	BadLines    int
	Sentences   int
	Expressions int
	Matches     int
}

func (s *Stats) add(o Stats) {
	s.Lines += o.Lines
	s.BadLines += o.BadLines
	s.Sentences += o.Sentences
	s.Expressions += o.Expressions
	s.Matches += o.Matches
}

// Extractor counts (expression, hour) co-occurrences. It is not safe for
// concurrent use; scan files in parallel with one Extractor each, as
// ScanFiles does.
type Extractor struct {
	acc       *distribution.Accumulator
	exprRe    *regexp.Regexp
	numberRe  *regexp.Regexp
	labels    map[string]string
	cardinals lexicon.Cardinals
	stats     Stats
	chars     bool
}

// Lexicon is what an Extractor needs to know about a language.
type Lexicon struct {
	Lang        string
	Expressions []lexicon.Expression
	Cardinals   lexicon.Cardinals
}

// New returns an Extractor for one language.
func New(lex Lexicon) *Extractor {
	labels := lexicon.FormLabels(lex.Expressions)
	forms := make([]string, 0, len(labels))
	for f := range labels {
		forms = append(forms, f)
	}

	e := &Extractor{
		acc:       distribution.NewAccumulator(),
		exprRe:    alternation(forms),
		numberRe:  alternation(lex.Cardinals.Tokens(daypart.HoursPerDay)),
		labels:    labels,
		cardinals: lex.Cardinals,
		chars:     lexicon.CharacterTokens(lex.Lang),
	}
	for _, exp := range lex.Expressions {
		e.acc.Touch(exp.Name)
	}
	return e
}

// alternation compiles a literal alternation that prefers longer tokens.
func alternation(tokens []string) *regexp.Regexp {
	sorted := slices.Clone(tokens)
	lexicon.LongestFirst(sorted)
	quoted := make([]string, 0, len(sorted))
	for _, t := range sorted {
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) == 0 {
		return regexp.MustCompile(`[^\s\S]`)
	}
	return regexp.MustCompile("(?:" + strings.Join(quoted, "|") + ")")
}

// single reduces the distinct matches in s to one: a lone match, or the
// longer of two nested ones. Anything else is ambiguous.
func single(re *regexp.Regexp, s string) (string, bool) {
	var found []string
	for _, m := range re.FindAllString(s, -1) {
		m = strings.TrimSpace(m)
		if m != "" && !slices.Contains(found, m) {
			found = append(found, m)
		}
		if len(found) > 2 {
			return "", false
		}
	}
	switch {
	case len(found) == 1:
		return found[0], true
	case len(found) == 2 && strings.Contains(found[1], found[0]):
		return found[1], true
	case len(found) == 2 && strings.Contains(found[0], found[1]):
		return found[0], true
	default:
		return "", false
	}
}

// Line splits text into rough sentences on "." and records each one's
// co-occurrence, if any. Lines that are not valid UTF-8 are skipped.
func (e *Extractor) Line(text string) {
	e.stats.Lines++
	if !utf8.ValidString(text) {
		e.stats.BadLines++
		return
	}
	for _, sent := range strings.Split(text, ".") {
		e.stats.Sentences++
		if o, ok := e.Sentence(sent); ok {
			e.stats.Matches++
			// Weight 1 and a known category cannot fail.
			_ = e.acc.Add(o) //nolint:errcheck // see above
		}
	}
}

// Sentence finds the single time expression of a sentence and the single
// cardinal within Window tokens of it.
func (e *Extractor) Sentence(sent string) (distribution.Observation, bool) {
	form, ok := single(e.exprRe, sent)
	if !ok {
		return distribution.Observation{}, false
	}
	e.stats.Expressions++

	tok, ok := single(e.numberRe, e.around(sent, form))
	if !ok {
		return distribution.Observation{}, false
	}
	hour, ok := e.cardinals[tok]
	if !ok || hour < daypart.FirstHour || hour > daypart.LastHour {
		return distribution.Observation{}, false
	}
	return distribution.Observation{Category: e.labels[form], Hour: hour, Weight: 1}, true
}

// around returns the Window tokens before the first occurrence of form and
// the Window tokens after its last occurrence.
func (e *Extractor) around(sent, form string) string {
	first := strings.Index(sent, form)
	last := strings.LastIndex(sent, form)
	before := e.tokens(sent[:first])
	after := e.tokens(sent[last+len(form):])
	if len(before) > Window {
		before = before[len(before)-Window:]
	}
	if len(after) > Window {
		after = after[:Window]
	}
	sep := " "
	if e.chars {
		sep = ""
	}
	return strings.Join(before, sep) + " " + strings.Join(after, sep)
}

func (e *Extractor) tokens(s string) []string {
	if !e.chars {
		return strings.Fields(s)
	}
	var out []string
	for _, r := range s {
		if r != ' ' && r != '\t' {
			out = append(out, string(r))
		}
	}
	return out
}

// Distribution returns the counts gathered so far.
func (e *Extractor) Distribution() distribution.Distribution {
	return e.acc.Distribution()
}

// Stats returns the scan counters.
func (e *Extractor) Stats() Stats {
	return e.stats
}
