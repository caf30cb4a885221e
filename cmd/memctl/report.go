package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/bench"
)

var (
	reportInput  string
	reportOutput string
)

func init() {
	cmd := newReportCmd()
	cmd.Flags().StringVarP(&reportInput, "input", "i", "", "Benchmark output to read (stdin if not specified)")
	cmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Markdown file to write (stdout if not specified)")
	rootCmd.AddCommand(cmd)
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Turn go test benchmark output into a comparison report",
		Long: `The report command reads the output of the bench package's Go
benchmarks, plain or from go test -json, and writes a markdown table
comparing memkit with every baseline that ran the same workload.

Example:
  go test -run '^$' -bench . ./bench | memctl report
  memctl report --input bench.txt --output REPORT.md
  memctl report --input bench.txt --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(args)
		},
	}
}

func runReport(args []string) error {
	var in io.Reader = os.Stdin
	if reportInput != "" {
		f, err := os.Open(reportInput)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	results, err := bench.ParseGoBench(in)
	if err != nil {
		return err
	}
	comps := bench.Compare(results)
	printVerbose("Parsed %d results, %d comparisons\n", len(results), len(comps))

	if jsonOut {
		return printJSON(comps)
	}
	if reportOutput == "" {
		return bench.WriteMarkdown(os.Stdout, comps)
	}

	f, err := os.Create(reportOutput)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := bench.WriteMarkdown(f, comps); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printInfo("Report written to %s\n", reportOutput)
	return nil
}
