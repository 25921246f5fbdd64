// Package resolve runs the interval resolution engine end to end: it
// validates the input, builds the constraint model, solves it under the
// configured time limit and extracts the Solution.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/model"
	"github.com/codeGROOVE-dev/dayparts/pkg/solver"
)

// Input carries the evidence for one solve. Coverage is read under the
// coverage objective and Boundaries under the boundaries objective.
type Input struct {
	Coverage   distribution.Distribution
	Boundaries distribution.Boundaries
}

// Option configures an Engine.
type Option func(*Engine)

// WithSolver replaces the default chain solver.
func WithSolver(s solver.Solver) Option {
	return func(e *Engine) {
		e.solver = s
	}
}

// Engine resolves distributions into intervals. It holds no per-solve
// state and may be shared between goroutines.
type Engine struct {
	logger *slog.Logger
	solver solver.Solver
}

// New returns an Engine that logs to logger.
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.solver == nil {
		e.solver = solver.NewChain(logger)
	}
	return e
}

// Resolve validates cfg and in, then solves. Errors wrap the sentinels in
// package daypart: ErrInvalidConfiguration, ErrInputDomain, ErrInfeasible
// and ErrSolverTimeout.
func (e *Engine) Resolve(ctx context.Context, cfg daypart.Config, in Input) (*Solution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var m *model.Model
	switch cfg.Objective {
	case daypart.ObjectiveBoundaries:
		if err := in.Boundaries.Validate(cfg); err != nil {
			return nil, err
		}
		built, err := model.BuildBoundaries(cfg, in.Boundaries.Normalize(cfg.Regime))
		if err != nil {
			return nil, err
		}
		m = built
	default:
		if err := in.Coverage.Validate(cfg); err != nil {
			return nil, err
		}
		built, err := model.BuildCoverage(cfg, in.Coverage.Normalize(cfg.Regime))
		if err != nil {
			return nil, err
		}
		m = built
	}
	return e.solve(ctx, cfg, m)
}

// ResolveCoverage is Resolve for a coverage distribution.
func (e *Engine) ResolveCoverage(ctx context.Context, cfg daypart.Config, dist distribution.Distribution) (*Solution, error) {
	cfg.Objective = daypart.ObjectiveCoverage
	return e.Resolve(ctx, cfg, Input{Coverage: dist})
}

// ResolveBoundaries is Resolve for start/end distributions.
func (e *Engine) ResolveBoundaries(ctx context.Context, cfg daypart.Config, bounds distribution.Boundaries) (*Solution, error) {
	cfg.Objective = daypart.ObjectiveBoundaries
	return e.Resolve(ctx, cfg, Input{Boundaries: bounds})
}

func (e *Engine) solve(ctx context.Context, cfg daypart.Config, m *model.Model) (*Solution, error) {
	if cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.TimeLimit)
		defer cancel()
	}

	started := time.Now()
	a, err := e.solver.Solve(ctx, m)
	if err != nil {
		e.logger.Debug("solve failed", "objective", cfg.Objective, "error", err, "elapsed", time.Since(started))
		return nil, fmt.Errorf("solving %s model: %w", cfg.Objective, err)
	}

	sol, err := Extract(m, a)
	if err != nil {
		return nil, err
	}
	e.logger.Info("intervals resolved",
		"objective", cfg.Objective,
		"regime", cfg.Regime,
		"categories", len(sol.Intervals),
		"value", sol.Value,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return sol, nil
}
