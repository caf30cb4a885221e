package bench

import (
	"fmt"
	"math/rand"
	"strings"
)

// Kind names an allocation workload.
type Kind string

const (
	SmallBurst  Kind = "smallburst"  // many small blocks, then free them all
	LargeBurst  Kind = "largeburst"  // few large blocks, then free them all
	Mixed       Kind = "mixed"       // random sizes in a range, then free them all
	Alternating Kind = "alternating" // allocate and free immediately
)

// Kinds lists every workload.
var Kinds = []Kind{SmallBurst, LargeBurst, Mixed, Alternating}

// ParseKind resolves a workload name case-insensitively.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, name)
}

// Pattern is one round of a workload.
type Pattern struct {
	Kind    Kind
	Count   int
	Size    uintptr
	MinSize uintptr
	MaxSize uintptr
	Align   uintptr
	Seed    int64
}

// Tally counts what a round did.
type Tally struct {
	Allocs int64
	Frees  int64
	Bytes  int64
	Failed int64
}

func (t *Tally) add(o Tally) {
	t.Allocs += o.Allocs
	t.Frees += o.Frees
	t.Bytes += o.Bytes
	t.Failed += o.Failed
}

// Ops returns allocations plus frees.
func (t Tally) Ops() int64 {
	return t.Allocs + t.Frees
}

type live struct {
	addr, size uintptr
}

// Execute runs one round of p against tgt. Failed allocations are counted
// and skipped, never freed.
func (p Pattern) Execute(tgt Target, rng *rand.Rand) Tally {
	var tally Tally
	alloc := func(size uintptr) (uintptr, bool) {
		addr, err := tgt.Alloc(size, p.Align)
		if err != nil {
			tally.Failed++
			return 0, false
		}
		tally.Allocs++
		tally.Bytes += int64(size)
		return addr, true
	}
	free := func(addr, size uintptr) {
		tgt.Free(addr, size, p.Align)
		tally.Frees++
	}

	switch p.Kind {
	case Alternating:
		for i := 0; i < p.Count; i++ {
			if addr, ok := alloc(p.Size); ok {
				free(addr, p.Size)
			}
		}
		return tally
	case Mixed:
		if rng == nil {
			rng = rand.New(rand.NewSource(p.Seed))
		}
	}

	held := make([]live, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		size := p.Size
		if p.Kind == Mixed {
			size = p.MinSize + uintptr(rng.Int63n(int64(p.MaxSize-p.MinSize+1)))
		}
		if addr, ok := alloc(size); ok {
			held = append(held, live{addr, size})
		}
	}
	for _, l := range held {
		free(l.addr, l.size)
	}
	return tally
}

func (p Pattern) String() string {
	if p.Kind == Mixed {
		return fmt.Sprintf("%s(count=%d, size=%d..%d, align=%d)", p.Kind, p.Count, p.MinSize, p.MaxSize, p.Align)
	}
	return fmt.Sprintf("%s(count=%d, size=%d, align=%d)", p.Kind, p.Count, p.Size, p.Align)
}
