package bench

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"
)

// GoBenchResult is one line of `go test -bench` output.
type GoBenchResult struct {
	Name        string
	Workload    string
	Target      string
	Variant     string
	Iterations  int64
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// BenchmarkSmallBurst/memkit/64-8   100000   1234 ns/op   0 B/op   0 allocs/op
var goBenchLine = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`,
)

// ParseGoBench reads benchmark output, plain or from `go test -json`.
// Benchmarks are expected to be named Benchmark<Workload>/<target>[/<variant>].
// Lines that are not benchmark results are skipped.
func ParseGoBench(r io.Reader) ([]GoBenchResult, error) {
	var out []GoBenchResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		var ev struct{ Output string }
		if strings.HasPrefix(line, "{") && json.Unmarshal([]byte(line), &ev) == nil {
			line = ev.Output
		}
		m := goBenchLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		res := GoBenchResult{Name: m[1]}
		res.Iterations, _ = strconv.ParseInt(m[2], 10, 64)
		res.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		if m[4] != "" {
			res.BytesPerOp, _ = strconv.ParseInt(m[4], 10, 64)
		}
		if m[5] != "" {
			res.AllocsPerOp, _ = strconv.ParseInt(m[5], 10, 64)
		}

		parts := strings.Split(stripProcs(m[1]), "/")
		res.Workload = strings.TrimPrefix(parts[0], "Benchmark")
		if len(parts) > 1 {
			res.Target = parts[1]
		}
		if len(parts) > 2 {
			res.Variant = strings.Join(parts[2:], "/")
		}
		out = append(out, res)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("bench: read benchmark output: %w", err)
	}
	return out, nil
}

// stripProcs drops the -GOMAXPROCS suffix go test appends.
func stripProcs(name string) string {
	i := strings.LastIndex(name, "-")
	if i <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}

// Comparison sets memkit against one baseline on one benchmark.
type Comparison struct {
	Workload string
	Variant  string
	Baseline string
	Memkit   GoBenchResult
	Other    GoBenchResult
}

// Speedup is baseline time over memkit time; above 1 memkit is faster.
func (c Comparison) Speedup() float64 {
	if c.Memkit.NsPerOp == 0 {
		return 0
	}
	return c.Other.NsPerOp / c.Memkit.NsPerOp
}

// Compare pairs every memkit result with the baselines that ran the same
// workload and variant.
func Compare(results []GoBenchResult) []Comparison {
	type key struct{ workload, variant string }
	grouped := make(map[key]map[string]GoBenchResult)
	for _, r := range results {
		k := key{r.Workload, r.Variant}
		if grouped[k] == nil {
			grouped[k] = make(map[string]GoBenchResult)
		}
		grouped[k][r.Target] = r
	}

	var comps []Comparison
	for k, byTarget := range grouped {
		mk, ok := byTarget[TargetMemkit]
		if !ok {
			continue
		}
		for target, other := range byTarget {
			if target == TargetMemkit {
				continue
			}
			comps = append(comps, Comparison{
				Workload: k.workload,
				Variant:  k.variant,
				Baseline: target,
				Memkit:   mk,
				Other:    other,
			})
		}
	}
	sort.Slice(comps, func(i, j int) bool {
		a, b := comps[i], comps[j]
		if a.Workload != b.Workload {
			return a.Workload < b.Workload
		}
		if a.Variant != b.Variant {
			return a.Variant < b.Variant
		}
		return a.Baseline < b.Baseline
	})
	return comps
}

// WriteMarkdown renders comparisons as a markdown report.
func WriteMarkdown(w io.Writer, comps []Comparison) error {
	var sb strings.Builder
	sb.WriteString("# Allocator Benchmark Report\n\n")

	faster := 0
	var total float64
	for _, c := range comps {
		if c.Speedup() > 1 {
			faster++
		}
		total += c.Speedup()
	}
	fmt.Fprintf(&sb, "- Comparisons: %d\n", len(comps))
	if len(comps) > 0 {
		fmt.Fprintf(&sb, "- memkit faster: %d of %d\n", faster, len(comps))
		fmt.Fprintf(&sb, "- Mean speedup: **%.2fx**\n", total/float64(len(comps)))
	}
	sb.WriteString("\n| Workload | Variant | Baseline | memkit ns/op | baseline ns/op | Speedup | memkit B/op |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, c := range comps {
		mark := ""
		if c.Speedup() > 1 {
			mark = " ✓"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %.2fx%s | %s |\n",
			c.Workload, c.Variant, c.Baseline,
			humanize.CommafWithDigits(c.Memkit.NsPerOp, 1),
			humanize.CommafWithDigits(c.Other.NsPerOp, 1),
			c.Speedup(), mark,
			humanize.IBytes(uint64(c.Memkit.BytesPerOp)),
		)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
