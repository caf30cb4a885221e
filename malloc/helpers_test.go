package malloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/pages"
)

// newTestAllocator returns an allocator over the system provider with a
// counting wrapper and an event ring large enough for a test.
func newTestAllocator(t *testing.T) (*Allocator, *pages.Counting, *RingSink) {
	t.Helper()
	counting := pages.NewCounting(nil)
	ring := NewRingSink(4 * Capacity)
	return New(Options{Provider: counting, Sink: ring}), counting, ring
}

// fill writes a pattern derived from seed over the region.
func fill(addr, size uintptr, seed byte) {
	buf := Bytes(addr, size)
	for i := range buf {
		buf[i] = seed + byte(i%251)
	}
}

// requirePattern checks the first n bytes written by fill.
func requirePattern(t *testing.T, addr, n uintptr, seed byte) {
	t.Helper()
	buf := Bytes(addr, n)
	for i := range buf {
		if buf[i] != seed+byte(i%251) {
			require.Failf(t, "pattern mismatch", "offset %d: got %#x want %#x", i, buf[i], seed+byte(i%251))
		}
	}
}

// lastEvent returns the most recent event in the ring.
func lastEvent(t *testing.T, ring *RingSink) Event {
	t.Helper()
	evs := ring.Events()
	require.NotEmpty(t, evs)
	return evs[len(evs)-1]
}

// failingProvider never has memory.
type failingProvider struct{}

func (failingProvider) Reserve(uintptr) (uintptr, error) { return 0, pages.ErrExhausted }
func (failingProvider) Release(uintptr, uintptr) error   { return nil }

type region struct {
	addr, size uintptr
}

// fixedProvider hands out the same address and never touches it. Only
// usable for paths that do not dereference memory.
type fixedProvider struct {
	addr     uintptr
	released []region
}

func (p *fixedProvider) Reserve(uintptr) (uintptr, error) { return p.addr, nil }
func (p *fixedProvider) Release(addr, size uintptr) error {
	p.released = append(p.released, region{addr, size})
	return nil
}
