package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joshuapare/memkit/bench"
	"github.com/joshuapare/memkit/internal/logger"
)

var (
	benchTargets []string
	benchPattern string
	benchCount   int64
	benchSize    int64
	benchMinSize int64
	benchMaxSize int64
	benchAlign   int64
	benchRounds  int64
	benchThreads int64
	benchSeed    int64
	benchSysMem  bool
)

func init() {
	cmd := newBenchCmd()
	defaults := bench.Flags()
	cmd.Flags().StringSliceVarP(&benchTargets, "target", "t", bench.Targets,
		"Allocators to run: "+strings.Join(bench.Targets, ", "))
	cmd.Flags().StringVarP(&benchPattern, "pattern", "p", defaultString(defaults, "pattern"),
		"Workload: "+strings.Join(kindNames(), ", "))
	cmd.Flags().Int64VarP(&benchCount, "count", "n", defaultInt64(defaults, "count"), "Allocations per round")
	cmd.Flags().Int64Var(&benchSize, "size", defaultInt64(defaults, "size"), "Allocation size for fixed-size workloads")
	cmd.Flags().Int64Var(&benchMinSize, "min-size", defaultInt64(defaults, "min-size"), "Smallest size for the mixed workload")
	cmd.Flags().Int64Var(&benchMaxSize, "max-size", defaultInt64(defaults, "max-size"), "Largest size for the mixed workload")
	cmd.Flags().Int64Var(&benchAlign, "align", defaultInt64(defaults, "align"), "Alignment of every request")
	cmd.Flags().Int64VarP(&benchRounds, "rounds", "r", defaultInt64(defaults, "rounds"), "Rounds per worker")
	cmd.Flags().Int64VarP(&benchThreads, "threads", "j", defaultInt64(defaults, "threads"), "Worker goroutines")
	cmd.Flags().Int64Var(&benchSeed, "seed", defaultInt64(defaults, "seed"), "Seed for the mixed workload")
	cmd.Flags().BoolVar(&benchSysMem, "sysmem", false, "Report host and process memory after the runs")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Compare allocators on a workload",
		Long: `The bench command runs one allocation workload against each selected
allocator and reports throughput. memkit results include the share of
allocations served from the per-thread cache.

Example:
  memctl bench
  memctl bench --pattern mixed --min-size 16 --max-size 8192 --threads 4
  memctl bench --target memkit --pattern alternating --count 100000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(args)
		},
	}
}

func kindNames() []string {
	names := make([]string, len(bench.Kinds))
	for i, k := range bench.Kinds {
		names[i] = string(k)
	}
	return names
}

func defaultString(fs *pflag.FlagSet, name string) string {
	v, _ := fs.GetString(name)
	return v
}

func defaultInt64(fs *pflag.FlagSet, name string) int64 {
	v, _ := fs.GetInt64(name)
	return v
}

// benchConfig builds the run for target from the command's flags.
func benchConfig(target string) (bench.Config, error) {
	fs := bench.Flags()
	err := bench.Set(fs, map[string]any{
		"pattern":  benchPattern,
		"target":   target,
		"count":    benchCount,
		"size":     benchSize,
		"min-size": benchMinSize,
		"max-size": benchMaxSize,
		"align":    benchAlign,
		"rounds":   benchRounds,
		"threads":  benchThreads,
		"seed":     benchSeed,
	})
	if err != nil {
		return bench.Config{}, err
	}
	return bench.NewConfig(fs)
}

type benchReport struct {
	Results []bench.Result `json:"results"`
	SysMem  *bench.SysMem  `json:"sysmem,omitempty"`
}

func runBench(args []string) error {
	var report benchReport
	for _, target := range benchTargets {
		cfg, err := benchConfig(strings.TrimSpace(target))
		if err != nil {
			return err
		}
		printVerbose("Running %s on %s, %d thread(s) x %d round(s)\n",
			cfg.Pattern, cfg.Target, cfg.Threads, cfg.Rounds)
		logger.Debug("bench start", "target", cfg.Target, "pattern", cfg.Pattern.String())

		res, err := bench.Run(cfg, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Target, err)
		}
		logger.Debug("bench done", "target", res.Target, "elapsed", res.Elapsed, "failed", res.Tally.Failed)
		report.Results = append(report.Results, res)
	}

	if benchSysMem {
		mem, err := bench.ReadSysMem()
		if err != nil {
			logger.Warn("sysmem unavailable", "err", err)
		} else {
			report.SysMem = &mem
		}
	}

	if jsonOut {
		return printJSON(report)
	}
	if quiet {
		return nil
	}
	if err := bench.WriteReport(os.Stdout, report.Results); err != nil {
		return err
	}
	if report.SysMem != nil {
		printInfo("\n%s\n", report.SysMem)
	}
	return nil
}
