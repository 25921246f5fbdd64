// Package lmprobe estimates hour distributions for time expressions by
// asking a language model to fill the hour slot of prompt templates.
package lmprobe

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/lexicon"
)

// Template placeholders.
const (
	MaskToken      = "[MASK]"
	ExpressionSlot = "<time_exp>"
)

// Unmasker scores candidate fillers for the MaskToken in text. Scores need
// not sum to one; tokens outside candidates are ignored.
type Unmasker interface {
	Fill(ctx context.Context, text string, candidates []string) (map[string]float64, error)
}

// Request describes one language's probing run.
type Request struct {
	Numbers     lexicon.Cardinals
	Templates   []string
	Expressions []lexicon.Expression
	// Hours is the clock size: 12 or 24.
	Hours int
}

// Option configures a Prober.
type Option func(*Prober)

// WithParallelism bounds how many expressions are probed at once.
func WithParallelism(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// Prober turns unmasking scores into per-expression hour distributions.
type Prober struct {
	unmasker    Unmasker
	logger      *slog.Logger
	parallelism int
}

// New returns a Prober backed by u.
func New(u Unmasker, logger *slog.Logger, opts ...Option) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{unmasker: u, logger: logger, parallelism: runtime.NumCPU()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Distribution probes every expression with every (template, form) pair.
// Each prompt's scores are normalized before they are summed, and the sum
// is normalized again, so every prompt counts equally.
func (p *Prober) Distribution(ctx context.Context, req Request) (distribution.Distribution, error) {
	if req.Hours != 12 && req.Hours != 24 {
		return nil, fmt.Errorf("clock size %d: want 12 or 24", req.Hours)
	}
	if len(req.Templates) == 0 {
		return nil, fmt.Errorf("no templates")
	}
	for _, t := range req.Templates {
		if !strings.Contains(t, MaskToken) || !strings.Contains(t, ExpressionSlot) {
			return nil, fmt.Errorf("template %q lacks %s or %s", t, MaskToken, ExpressionSlot)
		}
	}

	candidates := req.Numbers.Tokens(req.Hours)
	hists := make([]distribution.Histogram, len(req.Expressions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, exp := range req.Expressions {
		g.Go(func() error {
			h, err := p.expression(ctx, req, exp, candidates)
			if err != nil {
				return fmt.Errorf("%s: %w", exp.Name, err)
			}
			hists[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := make(distribution.Distribution, len(hists))
	for i, exp := range req.Expressions {
		d[exp.Name] = hists[i]
	}
	return d, nil
}

func (p *Prober) expression(ctx context.Context, req Request, exp lexicon.Expression, candidates []string) (distribution.Histogram, error) {
	total := make([]float64, req.Hours+1)
	prompts := 0
	for _, form := range exp.Forms {
		for _, tmpl := range req.Templates {
			text := strings.ReplaceAll(tmpl, ExpressionSlot, form)
			scores, err := p.unmasker.Fill(ctx, text, candidates)
			if err != nil {
				return nil, err
			}
			cur := make([]float64, req.Hours+1)
			sum := 0.0
			for tok, s := range scores {
				n, ok := req.Numbers[tok]
				if !ok || n < 1 || n > req.Hours || s <= 0 {
					continue
				}
				cur[n] += s
				sum += s
			}
			if sum == 0 {
				p.logger.Debug("prompt yielded no hour", "prompt", text)
				continue
			}
			prompts++
			for h := 1; h <= req.Hours; h++ {
				total[h] += cur[h] / sum
			}
		}
	}

	hist := make(distribution.Histogram, req.Hours)
	for h := 1; h <= req.Hours; h++ {
		hist[h] = 0
		if prompts > 0 {
			// Each counted prompt contributes a total of one.
			hist[h] = total[h] / float64(prompts)
		}
	}
	p.logger.Debug("expression probed", "expression", exp.Name, "prompts", prompts)
	return hist, nil
}

// Boundaries probes start and end templates separately. Masks are rewritten
// to "[MASK]:00" so the model fills an hour of a clock time.
func (p *Prober) Boundaries(ctx context.Context, edges lexicon.EdgeTemplates, req Request) (distribution.Boundaries, error) {
	var b distribution.Boundaries
	var err error

	req.Templates = clockTemplates(edges.Start)
	if b.Start, err = p.Distribution(ctx, req); err != nil {
		return b, fmt.Errorf("start: %w", err)
	}
	req.Templates = clockTemplates(edges.End)
	if b.End, err = p.Distribution(ctx, req); err != nil {
		return b, fmt.Errorf("end: %w", err)
	}
	return b, nil
}

func clockTemplates(templates []string) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = strings.ReplaceAll(t, MaskToken, MaskToken+":00")
	}
	return out
}
