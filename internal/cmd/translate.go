package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/audio-translator/translator/sdk/translator"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// TranslateOptions controls a CLI translation run.
type TranslateOptions struct {
	Strategy string
	Context  translator.Context
	Workers  int
	JSON     bool
	// Color enables ANSI colors in table output.
	Color bool
}

// TranslationOutput is the JSON document printed by TranslateTexts.
type TranslationOutput struct {
	Results []translator.BatchResult `json:"results"`
	Stats   translator.BatchStats    `json:"stats"`
}

// ReadLines reads one text per line from r, skipping blank lines.
func ReadLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

// ReadLinesFile is ReadLines over a file; "-" reads standard input.
func ReadLinesFile(path string) ([]string, error) {
	if path == "-" {
		return ReadLines(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadLines(f)
}

// TranslateTexts translates texts in parallel and prints them in input order.
// Unknown strategies are reported before any work starts.
func TranslateTexts(ctx context.Context, m *translator.Manager, texts []string, opts TranslateOptions, w io.Writer) (translator.BatchStats, error) {
	if _, _, err := m.Registry().Resolve(opts.Strategy); err != nil {
		return translator.BatchStats{}, err
	}
	results := translator.ParallelBatch(ctx, m, texts, opts.Strategy, opts.Context, opts.Workers)
	stats := translator.CalculateBatchStats(results)

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return stats, enc.Encode(TranslationOutput{Results: results, Stats: stats})
	}

	p := palette(opts.Color)
	for _, r := range results {
		tag := ""
		switch {
		case r.Fallback:
			tag = fmt.Sprintf(" %s[fallback: %s]%s", p.red, r.Error, p.reset)
		case r.CacheHit:
			tag = fmt.Sprintf(" %s[cached]%s", p.dim, p.reset)
		}
		_, _ = fmt.Fprintf(w, "%s%s%s => %s%s\n", p.dim, r.Source, p.reset, r.Text, tag)
	}
	_, _ = fmt.Fprintf(w, "\n%s%d translated%s, %d cached, %d fallbacks, avg %s\n",
		p.bold, stats.Total, p.reset, stats.CacheHits, stats.Fallbacks, stats.AverageDuration)
	return stats, nil
}

// TranslateFiles translates each path's file name and prints the new names.
func TranslateFiles(ctx context.Context, m *translator.Manager, paths []string, opts TranslateOptions, w io.Writer) error {
	results := make([]translator.FileResult, 0, len(paths))
	for _, path := range paths {
		res, err := m.TranslateFile(ctx, path, opts.Strategy, opts.Context)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	p := palette(opts.Color)
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s%s%s -> %s%s%s\n", p.dim, r.OriginalName, p.reset, p.green, r.FinalName, p.reset)
	}
	return nil
}

type colors struct {
	reset, red, green, yellow, cyan, bold, dim string
}

func palette(enabled bool) colors {
	if !enabled {
		return colors{}
	}
	return colors{colorReset, colorRed, colorGreen, colorYellow, colorCyan, colorBold, colorDim}
}
