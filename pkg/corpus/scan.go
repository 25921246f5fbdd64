package corpus

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
)

const (
	maxLineBytes = 16 << 20
	checkEvery   = 10_000
)

// Scan feeds every line of r through the extractor.
func (e *Extractor) Scan(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	n := 0
	for sc.Scan() {
		e.Line(sc.Text())
		n++
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scanning corpus: %w", err)
	}
	return nil
}

// ScanFile scans one corpus file. A ".gz" suffix is decompressed, and
// ".html"/".htm" documents are converted to markdown text first.
func (e *Extractor) ScanFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		defer gz.Close() //nolint:errcheck // read-only
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		raw, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		text, err := md.ConvertString(string(raw))
		if err != nil {
			return fmt.Errorf("converting %s to markdown: %w", path, err)
		}
		r = strings.NewReader(text)
	}
	if err := e.Scan(ctx, r); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ScanFiles scans paths concurrently, one Extractor per file, and merges
// the counts. The first failure cancels the remaining scans.
func ScanFiles(ctx context.Context, lex Lexicon, paths []string, parallelism int, logger *slog.Logger) (distribution.Distribution, Stats, error) {
	var (
		mu    sync.Mutex
		total Stats
	)
	merged := distribution.NewAccumulator()
	for _, exp := range lex.Expressions {
		merged.Touch(exp.Name)
	}

	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, path := range paths {
		g.Go(func() error {
			ex := New(lex)
			if err := ex.ScanFile(ctx, path); err != nil {
				return err
			}
			st := ex.Stats()
			logger.Info("corpus file scanned",
				"path", path,
				"lines", st.Lines,
				"skipped_lines", st.BadLines,
				"matches", st.Matches)

			mu.Lock()
			defer mu.Unlock()
			total.add(st)
			d := ex.Distribution()
			for _, cat := range d.Categories() {
				for h, w := range d[cat] {
					if err := merged.Add(distribution.Observation{Category: cat, Hour: h, Weight: w}); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, total, err
	}
	return merged.Distribution(), total, nil
}
