package main

import (
	"fmt"
	"math/rand"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/bench"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/malloc"
	"github.com/joshuapare/memkit/pages"
)

var (
	traceEvents  int
	traceRounds  int
	tracePattern string
	traceCount   int64
	traceSize    int64
	traceMinSize int64
	traceMaxSize int64
	traceAlign   int64
)

func init() {
	cmd := newTraceCmd()
	cmd.Flags().IntVar(&traceEvents, "events", 0, "Print the last N events")
	cmd.Flags().IntVarP(&traceRounds, "rounds", "r", 3, "Times to repeat the workload")
	cmd.Flags().StringVarP(&tracePattern, "pattern", "p", "smallburst", "Workload to trace")
	cmd.Flags().Int64VarP(&traceCount, "count", "n", 256, "Allocations per round")
	cmd.Flags().Int64Var(&traceSize, "size", 64, "Allocation size")
	cmd.Flags().Int64Var(&traceMinSize, "min-size", 8, "Smallest size for the mixed workload")
	cmd.Flags().Int64Var(&traceMaxSize, "max-size", 4096, "Largest size for the mixed workload")
	cmd.Flags().Int64Var(&traceAlign, "align", 8, "Alignment of every request")
	rootCmd.AddCommand(cmd)
}

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace",
		Short: "Show where memkit serves a workload from",
		Long: `The trace command runs a workload on a single memkit thread and
records every operation, reporting how many were served from the
per-thread cache and how many reached the page provider.

Example:
  memctl trace
  memctl trace --pattern mixed --rounds 10 --events 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(args)
		},
	}
}

// TraceSummary is the outcome of a trace run.
type TraceSummary struct {
	Pattern  string              `json:"pattern"`
	Rounds   int                 `json:"rounds"`
	Counts   map[string]int      `json:"counts"` // "<kind>/<source>"
	Thread   malloc.Stats        `json:"thread"`
	Provider pages.CountingStats `json:"provider"`
	Dropped  int64               `json:"dropped"`
	Events   []traceEvent        `json:"events,omitempty"`
}

type traceEvent struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Addr   string `json:"addr"`
	Size   uint64 `json:"size"`
}

func runTrace(args []string) error {
	opts := bench.Flags()
	err := bench.Set(opts, map[string]any{
		"pattern":  tracePattern,
		"count":    traceCount,
		"size":     traceSize,
		"min-size": traceMinSize,
		"max-size": traceMaxSize,
		"align":    traceAlign,
		"rounds":   traceRounds,
	})
	if err != nil {
		return err
	}
	cfg, err := bench.NewConfig(opts)
	if err != nil {
		return err
	}
	sum := traceRun(cfg.Pattern, cfg.Rounds, traceEvents)
	logger.Debug("trace done", "pattern", sum.Pattern, "hits", sum.Thread.CacheHits)

	if jsonOut {
		return printJSON(sum)
	}
	printTrace(sum)
	return nil
}

// traceRun executes p on a fresh allocator whose every operation is
// recorded. The ring is sized to keep the whole run.
func traceRun(p bench.Pattern, rounds, keep int) TraceSummary {
	ring := malloc.NewRingSink(4 * p.Count * rounds)
	provider := pages.NewCounting(nil)
	a := malloc.New(malloc.Options{Provider: provider, Sink: ring})

	sum := TraceSummary{Pattern: p.String(), Rounds: rounds, Counts: make(map[string]int)}
	a.Pin(func(t *malloc.Thread) {
		tgt := bench.ThreadTarget(t)
		rng := rand.New(rand.NewSource(p.Seed))
		for r := 0; r < rounds; r++ {
			p.Execute(tgt, rng)
		}
		sum.Thread = t.Stats()
	})

	events := ring.Events()
	for _, ev := range events {
		sum.Counts[ev.Kind.String()+"/"+ev.Source.String()]++
	}
	sum.Provider = provider.Stats()
	sum.Dropped = ring.Dropped()
	keep = min(max(keep, 0), len(events))
	for _, ev := range events[len(events)-keep:] {
		sum.Events = append(sum.Events, traceEvent{
			Kind:   ev.Kind.String(),
			Source: ev.Source.String(),
			Addr:   fmt.Sprintf("%#x", ev.Addr),
			Size:   uint64(ev.Size),
		})
	}
	return sum
}

func printTrace(sum TraceSummary) {
	st := sum.Thread
	printInfo("Workload:    %s x %d\n", sum.Pattern, sum.Rounds)
	printInfo("Allocations: %s (%s from cache, %s from provider)\n",
		humanize.Comma(int64(st.AllocCalls)),
		humanize.Comma(int64(sum.Counts["alloc/cache"])),
		humanize.Comma(int64(sum.Counts["alloc/backend"])))
	printInfo("Frees:       %s (%s cached, %s released)\n",
		humanize.Comma(int64(st.FreeCalls)),
		humanize.Comma(int64(sum.Counts["free/cache"])),
		humanize.Comma(int64(sum.Counts["free/backend"])))
	printInfo("Hit ratio:   %s%%\n", humanize.FtoaWithDigits(100*st.HitRatio(), 1))
	printInfo("Splits:      %d, evictions: %d\n", st.Splits, st.Evictions)
	printInfo("Provider:    %d reserves, %d releases, %s outstanding\n",
		sum.Provider.Reserves, sum.Provider.Releases, humanize.IBytes(uint64(max(sum.Provider.Bytes, 0))))
	if sum.Dropped > 0 {
		printInfo("Dropped:     %d events\n", sum.Dropped)
	}
	for _, ev := range sum.Events {
		printInfo("  %-6s %-7s %s %d\n", ev.Kind, ev.Source, ev.Addr, ev.Size)
	}
}
