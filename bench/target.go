package bench

import (
	"fmt"
	"unsafe"

	"modernc.org/memory"

	"github.com/joshuapare/memkit/malloc"
)

// Target is an allocator under test. A Target is used by one goroutine.
type Target interface {
	Name() string
	Alloc(size, align uintptr) (uintptr, error)
	Free(addr, size, align uintptr)
	Close() error
}

// Statser is implemented by targets that expose memkit counters.
type Statser interface {
	Stats() malloc.Stats
}

// Target names accepted by NewTarget.
const (
	TargetMemkit  = "memkit"
	TargetModernc = "modernc"
	TargetGoHeap  = "goheap"
)

// Targets lists every target name.
var Targets = []string{TargetMemkit, TargetModernc, TargetGoHeap}

func knownTarget(name string) bool {
	for _, t := range Targets {
		if t == name {
			return true
		}
	}
	return false
}

// NewTarget builds a target by name. Memkit targets take their Thread from
// a, or from malloc.Default() when a is nil.
func NewTarget(name string, a *malloc.Allocator) (Target, error) {
	switch name {
	case TargetMemkit:
		if a == nil {
			a = malloc.Default()
		}
		return ThreadTarget(a.NewThread()), nil
	case TargetModernc:
		return &moderncTarget{raw: make(map[uintptr]uintptr)}, nil
	case TargetGoHeap:
		return &goHeapTarget{live: make(map[uintptr][]byte)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
}

// ThreadTarget runs workloads on t. Closing the target closes t.
func ThreadTarget(t *malloc.Thread) Target {
	return &memkitTarget{t: t}
}

type memkitTarget struct {
	t *malloc.Thread
}

func (m *memkitTarget) Name() string { return TargetMemkit }

func (m *memkitTarget) Alloc(size, align uintptr) (uintptr, error) {
	return m.t.Allocate(size, align)
}

func (m *memkitTarget) Free(addr, size, align uintptr) {
	m.t.Deallocate(addr, size, align)
}

func (m *memkitTarget) Stats() malloc.Stats {
	return m.t.Stats()
}

func (m *memkitTarget) Close() error {
	m.t.Close()
	return nil
}

// moderncNative is the alignment modernc.org/memory guarantees.
const moderncNative = 2 * unsafe.Sizeof(uintptr(0))

// moderncTarget over-allocates for alignments the allocator does not
// provide and remembers the original address.
type moderncTarget struct {
	m   memory.Allocator
	raw map[uintptr]uintptr // aligned -> returned by UintptrMalloc
}

func (m *moderncTarget) Name() string { return TargetModernc }

func (m *moderncTarget) Alloc(size, align uintptr) (uintptr, error) {
	if align <= moderncNative {
		return m.m.UintptrMalloc(int(size))
	}
	p, err := m.m.UintptrMalloc(int(size + align - 1))
	if err != nil {
		return 0, err
	}
	aligned := (p + align - 1) &^ (align - 1)
	m.raw[aligned] = p
	return aligned, nil
}

func (m *moderncTarget) Free(addr, _, align uintptr) {
	if align > moderncNative {
		p := m.raw[addr]
		delete(m.raw, addr)
		addr = p
	}
	_ = m.m.UintptrFree(addr)
}

func (m *moderncTarget) Close() error {
	return m.m.Close()
}

// goHeapTarget allocates byte slices and keeps them reachable until freed.
type goHeapTarget struct {
	live map[uintptr][]byte
}

func (g *goHeapTarget) Name() string { return TargetGoHeap }

func (g *goHeapTarget) Alloc(size, align uintptr) (uintptr, error) {
	buf := make([]byte, size+align-1)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	aligned := (base + align - 1) &^ (align - 1)
	g.live[aligned] = buf
	return aligned, nil
}

func (g *goHeapTarget) Free(addr, _, _ uintptr) {
	delete(g.live, addr)
}

func (g *goHeapTarget) Close() error {
	clear(g.live)
	return nil
}
