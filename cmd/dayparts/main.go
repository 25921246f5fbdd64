// Package main implements the dayparts CLI, which resolves hour
// distributions into day-part intervals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dayparts/pkg/chart"
	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/eval"
	"github.com/codeGROOVE-dev/dayparts/pkg/resolve"
	"github.com/codeGROOVE-dev/dayparts/pkg/runner"
)

var (
	configPath  = flag.String("config", "", "YAML configuration file (or set DAYPARTS_CONFIG)")
	outDir      = flag.String("out", "", "Output directory (or set DAYPARTS_OUT, default \"output\")")
	objective   = flag.String("objective", "", "Override the objective: coverage or boundaries")
	regime      = flag.String("regime", "", "Override the regime: twelve_hour or resolved")
	timeLimit   = flag.Duration("time-limit", 0, "Override the per-solve time limit")
	parallelism = flag.Int("parallel", 0, "Maximum concurrent solves (default: number of CPUs)")
	attempts    = flag.Uint("attempts", runner.DefaultAttempts, "Attempts per job when the solver times out")
	goldPath    = flag.String("gold", "", "Score each solution against gold spans written by dayparts-annotations -gold-out")
	showChart   = flag.Bool("chart", false, "Print a chart of each solution")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("dayparts v0.3.0")
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <lang_input.json>...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *configPath == "" {
		*configPath = os.Getenv("DAYPARTS_CONFIG")
	}
	if *outDir == "" {
		*outDir = os.Getenv("DAYPARTS_OUT")
	}
	if *outDir == "" {
		*outDir = "output"
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(2)
	}
	var gold eval.Gold
	if *goldPath != "" {
		if gold, err = eval.ReadGoldFile(*goldPath); err != nil {
			logger.Error("Failed to load gold spans", "error", err)
			os.Exit(2)
		}
	}

	jobs := make([]runner.Job, 0, len(args))
	for _, path := range args {
		jobs = append(jobs, runner.Job{Config: cfg, Lang: langOf(path), Input: path})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine := resolve.New(logger)
	r := runner.New(logger, engine, *outDir,
		runner.WithParallelism(*parallelism),
		runner.WithAttempts(*attempts))

	results, err := r.Run(ctx, jobs)
	if gold != nil {
		for _, res := range results {
			if res.Solution == nil {
				continue
			}
			rep, scoreErr := eval.Score(res.Solution, gold)
			if scoreErr != nil {
				logger.Warn("Cannot score solution", "lang", res.Job.Lang, "error", scoreErr)
				continue
			}
			logger.Info("Scored against gold spans",
				"lang", res.Job.Lang,
				"accuracy", fmt.Sprintf("%.2f%%", rep.Accuracy*100),
				"start_diff", fmt.Sprintf("%.2fh", rep.StartDiff),
				"end_diff", fmt.Sprintf("%.2fh", rep.EndDiff),
				"categories", rep.Compared)
		}
	}
	if *showChart {
		for _, res := range results {
			if res.Solution == nil {
				continue
			}
			fmt.Printf("\n%s\n", res.Job.Lang)
			fmt.Print(chart.Render(res.Solution))
		}
	}
	if err != nil {
		if results == nil {
			logger.Error("Jobs not started", "error", err)
		}
		for _, res := range results {
			switch {
			case res.Err == nil:
			case errors.Is(res.Err, daypart.ErrInfeasible):
				logger.Error("No feasible intervals", "lang", res.Job.Lang, "error", res.Err)
			case errors.Is(res.Err, daypart.ErrSolverTimeout):
				logger.Error("Solver ran out of time", "lang", res.Job.Lang, "attempts", res.Attempts)
			default:
				logger.Error("Job failed", "lang", res.Job.Lang, "error", res.Err)
			}
		}
		stop()
		os.Exit(1)
	}
}

func loadConfig() (daypart.Config, error) {
	cfg := daypart.Default()
	if *configPath != "" {
		var err error
		if cfg, err = daypart.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	if *objective != "" {
		cfg.Objective = daypart.Objective(*objective)
	}
	if *regime != "" {
		cfg.Regime = daypart.Regime(*regime)
	}
	if *timeLimit > 0 {
		cfg.TimeLimit = *timeLimit
	}
	if cfg.TimeLimit == 0 {
		cfg.TimeLimit = 10 * time.Second
	}
	return cfg, cfg.Validate()
}

// langOf takes the language from an input file name: "en.json" and
// "en_24.json" both give "en".
func langOf(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if lang, _, ok := strings.Cut(base, "_"); ok {
		return lang
	}
	return base
}
