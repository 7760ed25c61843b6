package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/audio-translator/translator/sdk/translator"
)

// strategyTestTimeout bounds one connection probe.
const strategyTestTimeout = 30 * time.Second

// ListStrategies prints the registered strategies with their capabilities.
func ListStrategies(m *translator.Manager, jsonOutput, color bool, w io.Writer) error {
	infos := m.AvailableStrategies()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	p := palette(color)
	if len(infos) == 0 {
		_, _ = fmt.Fprintf(w, "%sNo strategies registered%s\n", p.yellow, p.reset)
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s%sStrategies%s (%d)\n", p.bold, p.cyan, p.reset, len(infos))
	_, _ = fmt.Fprintf(w, "%s─────────────────────────────────────────%s\n", p.dim, p.reset)
	for _, info := range infos {
		marker := " "
		if info.IsDefault {
			marker = "*"
		}
		caps := info.Capabilities
		_, _ = fmt.Fprintf(w, "%s %s%s%s %s(%s)%s %s\n", marker, p.green, info.Name, p.reset,
			p.dim, info.ProviderType, p.reset, info.Description)
		_, _ = fmt.Fprintf(w, "    batch=%t max-batch=%d max-text=%d\n",
			caps.SupportsBatch, caps.MaxBatchSize, caps.MaxTextLength)
	}
	return nil
}

// StrategyTestResult is one row of TestStrategies output.
type StrategyTestResult struct {
	Name string `json:"name"`
	translator.ConnectionStatus
}

// TestStrategies probes each named strategy, or every registered one when
// names is empty. It returns the number of failed probes.
func TestStrategies(ctx context.Context, m *translator.Manager, names []string, jsonOutput, color bool, w io.Writer) (int, error) {
	if len(names) == 0 {
		names = m.Registry().Names()
	}

	results := make([]StrategyTestResult, 0, len(names))
	failed := 0
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, strategyTestTimeout)
		status, err := m.TestStrategy(pctx, name)
		cancel()
		if err != nil {
			return failed, err
		}
		if !status.OK() {
			failed++
		}
		results = append(results, StrategyTestResult{Name: name, ConnectionStatus: status})
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return failed, enc.Encode(results)
	}
	p := palette(color)
	for _, r := range results {
		c := p.green
		if !r.OK() {
			c = p.red
		}
		_, _ = fmt.Fprintf(w, "%s%-7s%s %s %s%s%s\n", c, r.Status, p.reset, r.Name, p.dim, r.Message, p.reset)
	}
	return failed, nil
}
