// Package main implements dayparts-probe, which estimates hour
// distributions for time expressions by querying a language model.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/codeGROOVE-dev/dayparts/pkg/cache"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/lexicon"
	"github.com/codeGROOVE-dev/dayparts/pkg/lmprobe"
)

var (
	lang         = flag.String("lang", "en", "Template language")
	mode         = flag.String("mode", "distribution", "Probe mode: distribution or start_end")
	hours        = flag.Int("hours", 12, "Clock size offered to the model: 12 or 24")
	dataDir      = flag.String("data", "", "Directory with templates/, cardinals/ and time_expressions/ (or set DAYPARTS_DATA, default \"data\")")
	outPath      = flag.String("out", "", "Output JSON file (default: stdout)")
	geminiAPIKey = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	geminiModel  = flag.String("gemini-model", lmprobe.DefaultModel, "Gemini model to use (or set GEMINI_MODEL)")
	gcpProject   = flag.String("gcp-project", "", "GCP project ID for Vertex AI (or set GCP_PROJECT)")
	cacheDir     = flag.String("cache-dir", "", "Response cache directory (or set CACHE_DIR)")
	cacheTTL     = flag.Duration("cache-ttl", 30*24*time.Hour, "How long cached responses stay valid")
	noCache      = flag.Bool("no-cache", false, "Disable the response cache")
	parallelism  = flag.Int("parallel", 4, "Expressions probed at once")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *geminiAPIKey == "" {
		*geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if *geminiModel == lmprobe.DefaultModel && os.Getenv("GEMINI_MODEL") != "" {
		*geminiModel = os.Getenv("GEMINI_MODEL")
	}
	if *gcpProject == "" {
		*gcpProject = os.Getenv("GCP_PROJECT")
	}
	if *cacheDir == "" {
		*cacheDir = os.Getenv("CACHE_DIR")
	}
	if *cacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			*cacheDir = filepath.Join(dir, "dayparts")
		}
	}
	if *dataDir == "" {
		*dataDir = os.Getenv("DAYPARTS_DATA")
	}
	if *dataDir == "" {
		*dataDir = "data"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("Probe failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	exps, err := lexicon.LoadExpressions(filepath.Join(*dataDir, "time_expressions", *lang+".txt"))
	if err != nil {
		return err
	}
	numbers := lexicon.Numerals(*hours)
	if *mode == "distribution" {
		// Templates in this mode are filled with words too, as in "at seven".
		if numbers, err = lexicon.LoadCardinals(filepath.Join(*dataDir, "cardinals", *lang+".txt")); err != nil {
			return err
		}
	}

	var responses lmprobe.ResponseCache
	if !*noCache && *cacheDir != "" {
		store, err := cache.Open(ctx, *cacheDir, *cacheTTL, logger)
		if err != nil {
			return fmt.Errorf("opening response cache: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close response cache", "error", err)
			}
		}()
		responses = store
	}

	gem, err := lmprobe.NewGemini(ctx, lmprobe.GeminiConfig{
		APIKey:  *geminiAPIKey,
		Project: *gcpProject,
		Model:   *geminiModel,
	}, responses, logger)
	if err != nil {
		return err
	}
	prober := lmprobe.New(gem, logger, lmprobe.WithParallelism(*parallelism))
	req := lmprobe.Request{Numbers: numbers, Expressions: exps, Hours: *hours}

	out := os.Stdout
	if *outPath != "" {
		if out, err = os.Create(*outPath); err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck // closed explicitly below on success
	}

	switch *mode {
	case "distribution":
		if req.Templates, err = lexicon.LoadLines(filepath.Join(*dataDir, "templates", "distribution", *lang+".txt")); err != nil {
			return err
		}
		dist, err := prober.Distribution(ctx, req)
		if err != nil {
			return err
		}
		if err := distribution.WriteCoverage(out, dist); err != nil {
			return err
		}
	case "start_end":
		edges, err := lexicon.LoadEdgeTemplates(filepath.Join(*dataDir, "templates", "start_end", *lang+".json"))
		if err != nil {
			return err
		}
		b, err := prober.Boundaries(ctx, edges, req)
		if err != nil {
			return err
		}
		if err := distribution.WriteBoundaries(out, b); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
	return out.Close()
}
