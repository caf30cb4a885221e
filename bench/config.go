package bench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Sizes and alignments exercised by the round-trip workloads.
var (
	CommonSizes      = []uintptr{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}
	CommonAlignments = []uintptr{8, 16, 32, 64, 128, 256}
)

var (
	ErrUnknownPattern = errors.New("bench: unknown pattern")
	ErrUnknownTarget  = errors.New("bench: unknown target")
	ErrBadConfig      = errors.New("bench: invalid configuration")
)

// Flags returns the options of a benchmark run, each at its default.
//
// "pattern" (default: "smallburst"),
//
//	One of smallburst, largeburst, mixed, alternating.
//
// "target" (default: "memkit"),
//
//	One of memkit, modernc, goheap.
//
// "count" (default: 1000),
//
//	Allocations per round.
//
// "size" (default: 64),
//
//	Allocation size for the fixed-size patterns.
//
// "min-size", "max-size" (default: 8, 4096),
//
//	Size range for the mixed pattern, both inclusive.
//
// "align" (default: 8),
//
//	Alignment of every request.
//
// "rounds" (default: 100),
//
//	Times each worker repeats the pattern.
//
// "threads" (default: 1),
//
//	Worker goroutines, each locked to an OS thread.
//
// "seed" (default: 1),
//
//	Seed for the mixed pattern's size sequence.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("bench", pflag.ContinueOnError)
	fs.StringP("pattern", "p", string(SmallBurst), "Workload: "+strings.Join(kindNames(), ", "))
	fs.StringP("target", "t", TargetMemkit, "Allocator: "+strings.Join(Targets, ", "))
	fs.Int64P("count", "n", 1000, "Allocations per round")
	fs.Int64("size", 64, "Allocation size for fixed-size workloads")
	fs.Int64("min-size", 8, "Smallest size for the mixed workload")
	fs.Int64("max-size", 4096, "Largest size for the mixed workload")
	fs.Int64("align", 8, "Alignment of every request")
	fs.Int64P("rounds", "r", 100, "Rounds per worker")
	fs.Int64P("threads", "j", 1, "Worker goroutines")
	fs.Int64("seed", 1, "Seed for the mixed workload")
	return fs
}

// Set assigns values to the named options of fs, as a command line would.
func Set(fs *pflag.FlagSet, values map[string]any) error {
	for name, v := range values {
		if err := fs.Set(name, fmt.Sprint(v)); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBadConfig, name, err)
		}
	}
	return nil
}

func kindNames() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return names
}

// Config is a validated benchmark run.
type Config struct {
	Pattern Pattern
	Target  string
	Rounds  int
	Threads int
}

// NewConfig reads the options in fs and validates them. A nil fs runs
// with the defaults of Flags.
func NewConfig(fs *pflag.FlagSet) (Config, error) {
	if fs == nil {
		fs = Flags()
	}
	r := optionReader{fs: fs}
	pattern, target := r.str("pattern"), strings.ToLower(r.str("target"))
	count, rounds, threads := r.int64("count"), r.int64("rounds"), r.int64("threads")
	size, minSize, maxSize := r.int64("size"), r.int64("min-size"), r.int64("max-size")
	align, seed := r.int64("align"), r.int64("seed")
	if r.err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrBadConfig, r.err)
	}

	kind, err := ParseKind(pattern)
	if err != nil {
		return Config{}, err
	}
	if !knownTarget(target) {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	cfg := Config{
		Pattern: Pattern{
			Kind:    kind,
			Count:   int(count),
			Size:    uintptr(max(size, 0)),
			MinSize: uintptr(max(minSize, 0)),
			MaxSize: uintptr(max(maxSize, 0)),
			Align:   uintptr(max(align, 0)),
			Seed:    seed,
		},
		Target:  target,
		Rounds:  int(rounds),
		Threads: int(threads),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// optionReader keeps the first lookup error so NewConfig checks once.
type optionReader struct {
	fs  *pflag.FlagSet
	err error
}

func (r *optionReader) str(name string) string {
	v, err := r.fs.GetString(name)
	r.keep(err)
	return v
}

func (r *optionReader) int64(name string) int64 {
	v, err := r.fs.GetInt64(name)
	r.keep(err)
	return v
}

func (r *optionReader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (c Config) validate() error {
	p := c.Pattern
	switch {
	case p.Count <= 0:
		return fmt.Errorf("%w: count must be positive", ErrBadConfig)
	case c.Rounds <= 0:
		return fmt.Errorf("%w: rounds must be positive", ErrBadConfig)
	case c.Threads <= 0:
		return fmt.Errorf("%w: threads must be positive", ErrBadConfig)
	case p.Align == 0 || p.Align&(p.Align-1) != 0:
		return fmt.Errorf("%w: align %d is not a power of two", ErrBadConfig, p.Align)
	case p.Kind == Mixed && (p.MinSize == 0 || p.MinSize > p.MaxSize):
		return fmt.Errorf("%w: size range [%d, %d]", ErrBadConfig, p.MinSize, p.MaxSize)
	case p.Kind != Mixed && p.Size == 0:
		return fmt.Errorf("%w: size must be positive", ErrBadConfig)
	}
	return nil
}
