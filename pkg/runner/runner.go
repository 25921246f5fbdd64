// Package runner resolves many independent (language, input) jobs
// concurrently and persists each successful Solution.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/resolve"
)

// DefaultAttempts bounds how often a job that timed out is re-solved.
const DefaultAttempts = 3

// Job is one solve: the input distribution of a language under a config.
type Job struct {
	Config daypart.Config
	Lang   string
	// Input is the path of a coverage or boundaries JSON file, matching
	// Config.Objective.
	Input string
}

// OutputName returns the file name a successful job writes.
func (j Job) OutputName() string {
	return fmt.Sprintf("%s_%s.json", j.Lang, j.Config.Objective)
}

// Result reports the outcome of one job.
type Result struct {
	Solution *resolve.Solution
	Err      error
	Job      Job
	// Output is the written file, empty on failure.
	Output   string
	Attempts int
	Elapsed  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism bounds the number of jobs solved at once.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithAttempts sets how many times a timed-out job is tried in total.
func WithAttempts(n uint) Option {
	return func(r *Runner) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// Runner fans jobs out over an Engine.
type Runner struct {
	logger      *slog.Logger
	engine      *resolve.Engine
	outDir      string
	parallelism int
	attempts    uint
}

// New returns a Runner writing results into outDir.
func New(logger *slog.Logger, engine *resolve.Engine, outDir string, opts ...Option) *Runner {
	r := &Runner{
		logger:      logger,
		engine:      engine,
		outDir:      outDir,
		parallelism: runtime.NumCPU(),
		attempts:    DefaultAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run solves every job and returns one Result per job, in job order. Jobs
// fail independently; the returned error joins the failures. Jobs that would
// write the same output file are rejected before any of them starts.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if err := checkOutputs(jobs); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.outDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Job.Lang, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func checkOutputs(jobs []Job) error {
	seen := make(map[string]int, len(jobs))
	for i, job := range jobs {
		name := job.OutputName()
		if j, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s and %s would both write %s",
				daypart.ErrInvalidConfiguration, jobs[j].Input, job.Input, name)
		}
		seen[name] = i
	}
	return nil
}

func (r *Runner) runJob(ctx context.Context, job Job) Result {
	started := time.Now()
	res := Result{Job: job}
	logger := r.logger.With("lang", job.Lang, "objective", job.Config.Objective)

	in, err := readInput(job)
	if err != nil {
		res.Err = err
		return res
	}

	// Only a timeout is worth another try, and only with a larger budget.
	cfg := job.Config
	var lastErr error
	err = retry.Do(
		func() error {
			res.Attempts++
			sol, err := r.engine.Resolve(ctx, cfg, in)
			if err != nil {
				lastErr = err
				return err
			}
			res.Solution = sol
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(10*time.Millisecond),
		retry.MaxDelay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, daypart.ErrSolverTimeout)
		}),
		retry.OnRetry(func(n uint, err error) {
			cfg.TimeLimit *= 2
			logger.Warn("solver timed out, retrying with a larger time limit",
				"attempt", n+1, "time_limit", cfg.TimeLimit, "error", err)
		}),
	)
	res.Elapsed = time.Since(started)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			res.Err = ctx.Err()
		case lastErr != nil:
			res.Err = lastErr
		default:
			res.Err = err
		}
		logger.Error("job failed", "attempts", res.Attempts, "error", res.Err)
		return res
	}

	out := filepath.Join(r.outDir, job.OutputName())
	if err := res.Solution.WriteFile(out); err != nil {
		res.Err = err
		return res
	}
	res.Output = out
	logger.Info("job finished", "output", out, "attempts", res.Attempts, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res
}

func readInput(job Job) (resolve.Input, error) {
	if job.Config.Objective == daypart.ObjectiveBoundaries {
		b, err := distribution.ReadBoundariesFile(job.Input)
		if err != nil {
			return resolve.Input{}, err
		}
		return resolve.Input{Boundaries: b}, nil
	}
	d, err := distribution.ReadCoverageFile(job.Input)
	if err != nil {
		return resolve.Input{}, err
	}
	return resolve.Input{Coverage: d}, nil
}
