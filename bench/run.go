package bench

import (
	"errors"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/joshuapare/memkit/malloc"
)

// Result summarises one run.
type Result struct {
	Target  string        `json:"target"`
	Pattern string        `json:"pattern"`
	Threads int           `json:"threads"`
	Rounds  int           `json:"rounds"`
	Tally   Tally         `json:"tally"`
	Elapsed time.Duration `json:"elapsed_ns"`

	// Memkit is the sum of the workers' counters, nil for other targets.
	Memkit *malloc.Stats `json:"memkit,omitempty"`
}

// NsPerOp returns the mean wall time per allocation or free.
func (r Result) NsPerOp() float64 {
	ops := r.Tally.Ops()
	if ops == 0 {
		return 0
	}
	return float64(r.Elapsed.Nanoseconds()) / float64(ops)
}

// HitRatio returns the memkit cache hit ratio, or 0 for other targets.
func (r Result) HitRatio() float64 {
	if r.Memkit == nil {
		return 0
	}
	return r.Memkit.HitRatio()
}

// Run executes cfg. Memkit workers share a; a nil a means a fresh
// Allocator over the system provider.
func Run(cfg Config, a *malloc.Allocator) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	if cfg.Target == TargetMemkit && a == nil {
		a = malloc.New(malloc.Options{})
	}

	type outcome struct {
		tally Tally
		stats *malloc.Stats
		err   error
	}
	outs := make([]outcome, cfg.Threads)

	var ready, done sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < cfg.Threads; w++ {
		ready.Add(1)
		done.Add(1)
		go func(w int) {
			defer done.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			tgt, err := NewTarget(cfg.Target, a)
			ready.Done()
			if err != nil {
				outs[w].err = err
				return
			}
			rng := rand.New(rand.NewSource(cfg.Pattern.Seed + int64(w)))
			<-start
			for r := 0; r < cfg.Rounds; r++ {
				outs[w].tally.add(cfg.Pattern.Execute(tgt, rng))
			}
			if st, ok := tgt.(Statser); ok {
				stats := st.Stats()
				outs[w].stats = &stats
			}
			outs[w].err = tgt.Close()
		}(w)
	}
	ready.Wait()
	began := time.Now()
	close(start)
	done.Wait()
	elapsed := time.Since(began)

	res := Result{
		Target:  cfg.Target,
		Pattern: cfg.Pattern.String(),
		Threads: cfg.Threads,
		Rounds:  cfg.Rounds,
		Elapsed: elapsed,
	}
	var errs []error
	for _, o := range outs {
		res.Tally.add(o.tally)
		errs = append(errs, o.err)
		if o.stats != nil {
			if res.Memkit == nil {
				res.Memkit = new(malloc.Stats)
			}
			res.Memkit.Merge(*o.stats)
		}
	}
	return res, errors.Join(errs...)
}
