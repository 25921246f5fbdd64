// Package main implements dayparts-annotations, which turns an MTurk batch
// result file into start and end hour distributions.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/codeGROOVE-dev/dayparts/pkg/annotation"
	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/eval"
)

var (
	lang        = flag.String("lang", "en", "Language code expected in the Answer.lang column")
	expressions = flag.String("expressions", strings.Join(daypart.CanonicalCategories, ","), "Comma-separated expressions, in day order")
	dominance   = flag.Int("dominance", annotation.DefaultDominance, "Row count above which one language dominates the batch")
	noCorrect   = flag.Bool("no-correct", false, "Keep answers that look like AM/PM mix-ups")
	outPath     = flag.String("out", "", "Output JSON file (default: stdout)")
	goldPath    = flag.String("gold-out", "", "Also write the mean start and end of each expression to this file, for dayparts -gold")
	otherPath   = flag.String("additional-out", "", "Also write boundaries for annotator-added expressions to this file")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <batch_results.csv>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		logger.Error("Failed to open batch results", "error", err)
		os.Exit(1)
	}
	batch, err := annotation.Read(f, *lang,
		annotation.WithExpressions(strings.Split(*expressions, ",")...),
		annotation.WithDominance(*dominance))
	f.Close() //nolint:errcheck // read-only
	if err != nil {
		logger.Error("Failed to read batch results", "error", err)
		os.Exit(1)
	}
	if !*noCorrect {
		batch.CorrectAMPM(logger)
	}
	logger.Info("Batch loaded",
		"rows", batch.Stats.Rows,
		"incomplete", batch.Stats.Incomplete,
		"other_language", batch.Stats.OtherLanguage,
		"corrected", batch.Stats.Corrected,
		"additional_expressions", len(batch.Additional),
		"comments", len(batch.Comments))
	for exp, names := range batch.Translations {
		logger.Debug("Translations", "expression", exp, "names", names)
	}

	if err := write(*outPath, batch.Boundaries()); err != nil {
		logger.Error("Failed to write boundaries", "error", err)
		os.Exit(1)
	}
	if *goldPath != "" {
		if err := writeGold(*goldPath, eval.GoldFromBatch(batch)); err != nil {
			logger.Error("Failed to write gold spans", "error", err)
			os.Exit(1)
		}
	}
	if *otherPath != "" {
		if err := write(*otherPath, batch.AdditionalBoundaries()); err != nil {
			logger.Error("Failed to write additional boundaries", "error", err)
			os.Exit(1)
		}
	}
}

func write(path string, b distribution.Boundaries) error {
	if path == "" {
		return distribution.WriteBoundaries(os.Stdout, b)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := distribution.WriteBoundaries(f, b); err != nil {
		f.Close() //nolint:errcheck // already failing
		return err
	}
	return f.Close()
}

func writeGold(path string, g eval.Gold) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.Write(f); err != nil {
		f.Close() //nolint:errcheck // already failing
		return err
	}
	return f.Close()
}
