package lmprobe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/codeGROOVE-dev/dayparts/pkg/lexicon"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUnmasker returns fixed scores per prompt text.
type fakeUnmasker struct {
	scores map[string]map[string]float64
	mu     sync.Mutex
	seen   []string
}

func (f *fakeUnmasker) Fill(_ context.Context, text string, _ []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, text)
	return f.scores[text], nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDistributionNormalizesPerPrompt(t *testing.T) {
	u := &fakeUnmasker{scores: map[string]map[string]float64{
		"Wake at [MASK] in the morning": {"7": 0.6, "eight": 0.2, "cat": 0.9},
		"Wake at [MASK] in the a.m.":    {"7": 0.01, "9": 0.03},
		"Work ends at [MASK] at night":  {},
	}}
	req := Request{
		Numbers:   lexicon.NewCardinals([]string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten", "eleven", "twelve"}),
		Templates: []string{"Wake at [MASK] in the <time_exp>"},
		Expressions: []lexicon.Expression{
			{Name: "morning", Forms: []string{"morning", "a.m."}},
			{Name: "night", Forms: []string{"night"}},
		},
		Hours: 12,
	}
	got, err := New(u, discard(), WithParallelism(1)).Distribution(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	// First prompt: 7 -> 0.75, 8 -> 0.25. Second: 7 -> 0.25, 9 -> 0.75.
	m := got["morning"]
	if !near(m[7], 0.5) || !near(m[8], 0.125) || !near(m[9], 0.375) {
		t.Errorf("morning = %v", m)
	}
	if len(m) != 12 {
		t.Errorf("morning has %d hours, want 12", len(m))
	}
	if got["night"].Total() != 0 {
		t.Errorf("night = %v, want all zero", got["night"])
	}
	if len(u.seen) != 3 {
		t.Errorf("prompts = %v", u.seen)
	}
}

func TestDistributionRejectsBadRequests(t *testing.T) {
	p := New(&fakeUnmasker{}, discard())
	base := Request{Numbers: lexicon.Numerals(24), Templates: []string{"<time_exp> at [MASK]"}, Hours: 24}

	bad := base
	bad.Hours = 10
	if _, err := p.Distribution(context.Background(), bad); err == nil {
		t.Error("clock size 10 accepted")
	}
	bad = base
	bad.Templates = []string{"no slots here"}
	if _, err := p.Distribution(context.Background(), bad); err == nil {
		t.Error("template without mask accepted")
	}
}

func TestBoundariesRewriteMask(t *testing.T) {
	u := &fakeUnmasker{scores: map[string]map[string]float64{
		"morning starts at [MASK]:00": {"6": 1},
		"morning ends at [MASK]:00":   {"11": 2, "12": 2},
	}}
	req := Request{
		Numbers:     lexicon.Numerals(24),
		Expressions: []lexicon.Expression{{Name: "morning", Forms: []string{"morning"}}},
		Hours:       24,
	}
	edges := lexicon.EdgeTemplates{Start: []string{"<time_exp> starts at [MASK]"}, End: []string{"<time_exp> ends at [MASK]"}}
	b, err := New(u, discard()).Boundaries(context.Background(), edges, req)
	if err != nil {
		t.Fatal(err)
	}
	if !near(b.Start["morning"][6], 1) || !near(b.End["morning"][11], 0.5) || !near(b.End["morning"][12], 0.5) {
		t.Errorf("Boundaries() = %+v", b)
	}
}

type fakeModels struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: f.responses[i]}}}}},
	}, nil
}

type mapCache map[string][]byte

func (m mapCache) Response(ns string, payload []byte) ([]byte, bool) {
	v, ok := m[ns+string(payload)]
	return v, ok
}

func (m mapCache) SetResponse(ns string, payload, data []byte) error {
	m[ns+string(payload)] = data
	return nil
}

func TestGeminiFillRetriesAndCaches(t *testing.T) {
	models := &fakeModels{
		errs:      []error{errors.New("503 service unavailable"), nil},
		responses: []string{"", `{"scores":[{"token":"7","probability":0.7},{"token":"x","probability":0.3}]}`},
	}
	cache := mapCache{}
	g := newGemini(models, GeminiConfig{}, cache, discard())

	got, err := g.Fill(context.Background(), "at [MASK] in the morning", []string{"7", "8"})
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if len(got) != 1 || got["7"] != 0.7 {
		t.Errorf("Fill() = %v, want only the candidate token", got)
	}
	if models.calls != 2 {
		t.Errorf("calls = %d, want 2", models.calls)
	}

	if _, err := g.Fill(context.Background(), "at [MASK] in the morning", []string{"7", "8"}); err != nil {
		t.Fatal(err)
	}
	if models.calls != 2 {
		t.Errorf("cached prompt hit the model again: calls = %d", models.calls)
	}
}

func TestGeminiFillPermanentError(t *testing.T) {
	models := &fakeModels{errs: []error{errors.New("invalid argument: bad schema")}, responses: []string{""}}
	g := newGemini(models, GeminiConfig{Attempts: 3}, nil, discard())
	if _, err := g.Fill(context.Background(), "[MASK]", []string{"1"}); err == nil || !strings.Contains(err.Error(), "bad schema") {
		t.Errorf("Fill() error = %v", err)
	}
	if models.calls != 1 {
		t.Errorf("calls = %d, want 1 for a permanent error", models.calls)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"fenced", "Here:\n```json\n{\"scores\":[]}\n```", `{"scores":[]}`, true},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"embedded", `Sure! {"a":1} done`, `{"a":1}`, true},
		{"none", "no json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if (err == nil) != tt.ok || got != tt.want {
				t.Errorf("extractJSON(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}
