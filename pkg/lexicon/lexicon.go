// Package lexicon loads the per-language word lists shared by the evidence
// collectors: time expressions with their surface forms, cardinal number
// words, and prompt templates.
package lexicon

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Expression is a time-of-day label and the ways a language writes it.
type Expression struct {
	// Name is the English label, used as the category name.
	Name  string
	Forms []string
}

// ParseExpressions reads lines of the form "morning<TAB>Morgen|Vormittag".
func ParseExpressions(r io.Reader) ([]Expression, error) {
	lines, err := ParseLines(r)
	if err != nil {
		return nil, err
	}
	exps := make([]Expression, 0, len(lines))
	for i, line := range lines {
		name, forms, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("expression line %d: missing tab separator", i+1)
		}
		e := Expression{Name: strings.TrimSpace(name)}
		for _, f := range strings.Split(forms, "|") {
			if f = strings.TrimSpace(f); f != "" {
				e.Forms = append(e.Forms, f)
			}
		}
		if e.Name == "" || len(e.Forms) == 0 {
			return nil, fmt.Errorf("expression line %d: empty name or forms", i+1)
		}
		exps = append(exps, e)
	}
	return exps, nil
}

// FormLabels maps every surface form to its expression name.
func FormLabels(exps []Expression) map[string]string {
	labels := make(map[string]string)
	for _, e := range exps {
		for _, f := range e.Forms {
			labels[f] = e.Name
		}
	}
	return labels
}

// Cardinals maps a number token (word or numeral) to its value.
type Cardinals map[string]int

// NewCardinals numbers words from 1 in list order and adds the numerals of
// every value, so "three" and "3" both map to 3.
func NewCardinals(words []string) Cardinals {
	c := Numerals(len(words))
	for i, w := range words {
		c[w] = i + 1
	}
	return c
}

// Numerals returns "1".."n".
func Numerals(n int) Cardinals {
	c := make(Cardinals, n)
	for i := 1; i <= n; i++ {
		c[strconv.Itoa(i)] = i
	}
	return c
}

// Tokens returns the tokens whose value is at most max (all when max <= 0),
// longest first so alternations prefer "12" over "2".
func (c Cardinals) Tokens(maxValue int) []string {
	out := make([]string, 0, len(c))
	for tok, v := range c {
		if maxValue <= 0 || v <= maxValue {
			out = append(out, tok)
		}
	}
	LongestFirst(out)
	return out
}

// LongestFirst sorts tokens by descending length, then lexically.
func LongestFirst(tokens []string) {
	slices.SortFunc(tokens, func(a, b string) int {
		if n := cmp.Compare(len(b), len(a)); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
}

// ParseCardinals reads one number word per line, starting at one.
func ParseCardinals(r io.Reader) (Cardinals, error) {
	words, err := ParseLines(r)
	if err != nil {
		return nil, err
	}
	return NewCardinals(words), nil
}

// ParseLines returns the trimmed, non-empty lines of r.
func ParseLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}
	return lines, nil
}

// EdgeTemplates holds start and end prompt templates.
type EdgeTemplates struct {
	Start []string `json:"start"`
	End   []string `json:"end"`
}

// ParseEdgeTemplates reads {"start": [...], "end": [...]}.
func ParseEdgeTemplates(r io.Reader) (EdgeTemplates, error) {
	var t EdgeTemplates
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return t, fmt.Errorf("decoding edge templates: %w", err)
	}
	if len(t.Start) == 0 || len(t.End) == 0 {
		return t, fmt.Errorf("edge templates need both start and end entries")
	}
	return t, nil
}

// CharacterTokens reports whether a language is tokenized per character
// rather than on whitespace.
func CharacterTokens(lang string) bool {
	return lang == "ja" || lang == "zh"
}

func load[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only
	v, err := parse(f)
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// LoadExpressions reads an expressions file.
func LoadExpressions(path string) ([]Expression, error) {
	return load(path, ParseExpressions)
}

// LoadCardinals reads a cardinals file.
func LoadCardinals(path string) (Cardinals, error) {
	return load(path, ParseCardinals)
}

// LoadLines reads a template file, one template per line.
func LoadLines(path string) ([]string, error) {
	return load(path, ParseLines)
}

// LoadEdgeTemplates reads a start/end template file.
func LoadEdgeTemplates(path string) (EdgeTemplates, error) {
	return load(path, ParseEdgeTemplates)
}
