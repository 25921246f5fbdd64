// Package main implements dayparts-extract, which counts time expressions
// that co-occur with an hour in a text corpus.
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

	"github.com/codeGROOVE-dev/dayparts/pkg/corpus"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/lexicon"
)

var (
	lang        = flag.String("lang", "en", "Corpus language")
	dataDir     = flag.String("data", "", "Directory with time_expressions/ and cardinals/ (or set DAYPARTS_DATA, default \"data\")")
	outPath     = flag.String("out", "", "Output JSON file (default: stdout)")
	parallelism = flag.Int("parallel", 0, "Maximum files scanned at once (default: number of CPUs)")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <corpus file>...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *dataDir == "" {
		*dataDir = os.Getenv("DAYPARTS_DATA")
	}
	if *dataDir == "" {
		*dataDir = "data"
	}

	exps, err := lexicon.LoadExpressions(filepath.Join(*dataDir, "time_expressions", *lang+".txt"))
	if err != nil {
		logger.Error("Failed to load time expressions", "error", err)
		os.Exit(1)
	}
	cards, err := lexicon.LoadCardinals(filepath.Join(*dataDir, "cardinals", *lang+".txt"))
	if err != nil {
		logger.Error("Failed to load cardinals", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	lex := corpus.Lexicon{Lang: *lang, Expressions: exps, Cardinals: cards}
	dist, stats, err := corpus.ScanFiles(ctx, lex, paths, *parallelism, logger)
	if err != nil {
		logger.Error("Corpus scan failed", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("Corpus scanned",
		"files", len(paths),
		"lines", stats.Lines,
		"skipped_lines", stats.BadLines,
		"sentences", stats.Sentences,
		"matches", stats.Matches,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if err := write(dist); err != nil {
		logger.Error("Failed to write distribution", "error", err)
		stop()
		os.Exit(1)
	}
}

func write(dist distribution.Distribution) error {
	if *outPath == "" {
		return distribution.WriteCoverage(os.Stdout, dist)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := distribution.WriteCoverage(f, dist); err != nil {
		f.Close() //nolint:errcheck // already failing
		return err
	}
	return f.Close()
}
