package malloc

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/pages"
)

var (
	commonSizes      = []uintptr{8, 16, 32, 64, 128, 256, 512, 1024, 4096, 8192}
	commonAlignments = []uintptr{1, 8, 16, 32, 64}
)

func TestAllocateRoundTrip(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	// Twice over, so the second pass is mostly served from the cache.
	for pass := 0; pass < 2; pass++ {
		for _, size := range commonSizes {
			for _, align := range commonAlignments {
				name := fmt.Sprintf("pass%d/size=%d/align=%d", pass, size, align)
				t.Run(name, func(t *testing.T) {
					addr, err := th.Allocate(size, align)
					require.NoError(t, err)
					require.NotZero(t, addr)
					require.Zero(t, addr%align, "misaligned address %#x", addr)

					seed := byte(size + align)
					fill(addr, size, seed)
					requirePattern(t, addr, size, seed)
					th.Deallocate(addr, size, align)
				})
			}
		}
	}
	require.NotZero(t, th.Stats().CacheHits)
}

func TestAllocatePageAlignment(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	ps := pages.PageSize()
	addr, err := th.Allocate(100, ps)
	require.NoError(t, err)
	require.Zero(t, addr%ps)
	th.Deallocate(addr, 100, ps)
}

func TestReuseServedFromCache(t *testing.T) {
	a, counting, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	first, err := th.Allocate(128, 8)
	require.NoError(t, err)
	require.Equal(t, SourceBackend, lastEvent(t, ring).Source)

	th.Deallocate(first, 128, 8)
	require.Equal(t, Event{Kind: EventFree, Addr: first, Size: 128, Source: SourceCache}, lastEvent(t, ring))

	second, err := th.Allocate(128, 8)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, Event{Kind: EventAlloc, Addr: second, Size: 128, Source: SourceCache}, lastEvent(t, ring))

	require.Equal(t, int64(1), counting.Stats().Reserves)
	require.Equal(t, 0.5, th.Stats().HitRatio())
}

func TestSplitLeavesRemainder(t *testing.T) {
	a, _, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	big, err := th.Allocate(1024, 8)
	require.NoError(t, err)
	th.Deallocate(big, 1024, 8)

	small, err := th.Allocate(64, 8)
	require.NoError(t, err)
	require.Equal(t, big, small)
	require.Equal(t, []Block{{Addr: big + 64, Size: 960}}, th.Cached())
	require.Equal(t, 1, th.Stats().Splits)

	rest, err := th.Allocate(960, 8)
	require.NoError(t, err)
	require.Equal(t, big+64, rest)
	require.Equal(t, SourceCache, lastEvent(t, ring).Source)
	require.Zero(t, th.Len())

	// Both halves are independently usable.
	fill(small, 64, 1)
	fill(rest, 960, 2)
	requirePattern(t, small, 64, 1)
	requirePattern(t, rest, 960, 2)
}

func TestAlignmentSkipsUnalignedBlock(t *testing.T) {
	a, _, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	base, err := th.Allocate(512, 64)
	require.NoError(t, err)
	th.Deallocate(base, 512, 64)

	// Split off 8 bytes so the remainder starts at an odd multiple of 8.
	head, err := th.Allocate(8, 8)
	require.NoError(t, err)
	require.Equal(t, base, head)

	addr, err := th.Allocate(64, 64)
	require.NoError(t, err)
	require.Zero(t, addr%64)
	require.Equal(t, SourceBackend, lastEvent(t, ring).Source)
	require.Equal(t, []Block{{Addr: base + 8, Size: 504}}, th.Cached())
}

func TestCapacityOverflowReleases(t *testing.T) {
	a, counting, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	addrs := make([]uintptr, Capacity+1)
	for i := range addrs {
		addr, err := th.Allocate(64, 8)
		require.NoError(t, err)
		addrs[i] = addr
	}
	ring.Reset()

	for _, addr := range addrs {
		th.Deallocate(addr, 64, 8)
	}
	require.Equal(t, Capacity, th.Len())
	require.Equal(t, Capacity, ring.Count(EventFree, SourceCache))
	require.Equal(t, 1, ring.Count(EventFree, SourceBackend))
	require.Equal(t, Event{Kind: EventFree, Addr: addrs[Capacity], Size: 64, Source: SourceBackend}, lastEvent(t, ring))
	require.Equal(t, int64(1), counting.Stats().Releases)
	require.Equal(t, 1, th.Stats().Evictions)
}

func TestThreadIsolation(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	const workers = 8
	const rounds = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			a.Pin(func(th *Thread) {
				size := uintptr(1024 + 64*w)
				mine := make(map[uintptr]bool)
				for r := 0; r < rounds; r++ {
					addr, err := th.Allocate(size, 16)
					if err != nil {
						errs <- err
						return
					}
					if r > 0 && !mine[addr] {
						errs <- fmt.Errorf("worker %d: %#x was never freed by this thread", w, addr)
						return
					}
					fill(addr, size, byte(w))
					th.Deallocate(addr, size, 16)
					mine[addr] = true
				}
				for _, b := range th.Cached() {
					if !mine[b.Addr] {
						errs <- fmt.Errorf("worker %d: foreign block %#x cached", w, b.Addr)
						return
					}
				}
				if got := th.Stats().CacheHits; got != rounds-1 {
					errs <- fmt.Errorf("worker %d: %d cache hits, want %d", w, got, rounds-1)
				}
			})
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.True(t, a.CacheEnabled())
}

func TestPanicPathBypassesCache(t *testing.T) {
	a, _, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	warm, err := th.Allocate(256, 8)
	require.NoError(t, err)
	th.Deallocate(warm, 256, 8)
	before := th.Cached()

	addr, err := th.Allocate(4096, 8)
	require.NoError(t, err)

	var (
		sawUnwinding bool
		scratch      uintptr
		allocEvent   Event
	)
	r := th.Catch(func() {
		defer th.Guard(func() {
			sawUnwinding = th.Unwinding()

			// The cached 256-byte block fits, yet must not be handed out.
			var err error
			scratch, err = th.Allocate(256, 8)
			require.NoError(t, err)
			allocEvent = lastEvent(t, ring)
			require.Equal(t, before, th.Cached())

			th.Deallocate(scratch, 256, 8)
			th.Deallocate(addr, 4096, 8)
		})
		panic("boom")
	})
	require.Equal(t, "boom", r)
	require.True(t, sawUnwinding)
	require.False(t, th.Unwinding())

	require.Equal(t, Event{Kind: EventAlloc, Addr: scratch, Size: 256, Source: SourceBackend}, allocEvent)
	require.NotEqual(t, warm, scratch)
	require.Equal(t, Event{Kind: EventFree, Addr: addr, Size: 4096, Source: SourceBackend}, lastEvent(t, ring))
	require.Equal(t, before, th.Cached())
	require.True(t, a.CacheEnabled())

	again, err := th.Allocate(256, 8)
	require.NoError(t, err)
	require.Equal(t, warm, again)
	require.Equal(t, SourceCache, lastEvent(t, ring).Source)
}

func TestGuardKeepsPanicOrigin(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	cause := errors.New("decode failed")
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		func() {
			defer th.Guard(func() {})
			panicWith(cause)
		}()
	}()

	gp, ok := recovered.(*GuardedPanic)
	require.True(t, ok, "got %T", recovered)
	require.Equal(t, cause, gp.Value)
	require.ErrorIs(t, gp, cause)
	require.Contains(t, string(gp.Stack), "panicWith")

	// A second Guard further up keeps the first wrapper.
	r := th.Catch(func() {
		defer th.Guard(func() {})
		func() {
			defer th.Guard(func() {})
			panic("inner")
		}()
	})
	require.Equal(t, "inner", r)
}

//go:noinline
func panicWith(v any) {
	panic(v)
}

func TestGuardWithoutPanicUsesCache(t *testing.T) {
	a, _, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Allocate(64, 8)
	require.NoError(t, err)
	func() {
		defer th.Guard(func() { th.Deallocate(addr, 64, 8) })
	}()
	require.Equal(t, SourceCache, lastEvent(t, ring).Source)
	require.Equal(t, 1, th.Len())
	require.Nil(t, th.Catch(func() {}))
}

func TestClosedThreadDisablesCache(t *testing.T) {
	a, _, ring := newTestAllocator(t)
	th := a.NewThread()

	addr, err := th.Allocate(64, 8)
	require.NoError(t, err)
	th.Close()
	require.True(t, a.CacheEnabled(), "closing alone must not flip the flag")

	th.Deallocate(addr, 64, 8)
	require.False(t, a.CacheEnabled())
	require.Equal(t, SourceBackend, lastEvent(t, ring).Source)
	require.Zero(t, th.Len())

	// Other threads now bypass their lists too.
	other := a.NewThread()
	defer other.Close()
	x, err := other.Allocate(64, 8)
	require.NoError(t, err)
	other.Deallocate(x, 64, 8)
	require.Zero(t, other.Len())
	require.Equal(t, SourceBackend, lastEvent(t, ring).Source)
	require.Equal(t, 2, other.Stats().Bypassed)
}

func TestDisableCacheIsOneWay(t *testing.T) {
	a := New(Options{})
	require.True(t, a.CacheEnabled())
	a.DisableCache()
	a.DisableCache()
	require.False(t, a.CacheEnabled())
}

func TestAllocateInvalidLayout(t *testing.T) {
	a, counting, _ := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	tests := []struct {
		name        string
		size, align uintptr
	}{
		{"zero size", 0, 8},
		{"zero align", 8, 0},
		{"align not power of two", 8, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := th.Allocate(tt.size, tt.align)
			require.ErrorIs(t, err, ErrInvalidLayout)
			require.Zero(t, addr)
		})
	}
	require.Zero(t, counting.Stats().Reserves)
}

func TestAllocateOutOfMemory(t *testing.T) {
	a := New(Options{Provider: failingProvider{}, Sink: NopSink{}})
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Allocate(1<<20, 8)
	require.Zero(t, addr)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorIs(t, err, pages.ErrExhausted)
	require.Equal(t, 1, th.Stats().BackendFailures)
	require.True(t, a.CacheEnabled())
}

func TestAllocateAboveProviderAlignment(t *testing.T) {
	a, counting, _ := newTestAllocator(t)
	a.DisableCache()
	th := a.NewThread()
	defer th.Close()

	ps := pages.PageSize()
	for _, align := range []uintptr{16 * ps, 1 << 20} {
		for i := 0; i < 50; i++ {
			addr, err := th.Allocate(100, align)
			require.NoError(t, err, "align %d, attempt %d", align, i)
			require.Zero(t, addr%align)
			fill(addr, 100, byte(i))
			requirePattern(t, addr, 100, byte(i))
			th.Deallocate(addr, 100, align)
		}
	}
	require.Zero(t, th.Stats().BackendFailures)
	require.Zero(t, counting.Stats().Failures)
}

func TestAllocateTrimsOverReservation(t *testing.T) {
	ps := pages.PageSize()
	p := &fixedProvider{addr: 3 * ps}
	a := New(Options{Provider: p, Sink: NopSink{}})
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Allocate(64, 4*ps)
	require.NoError(t, err)
	require.Equal(t, 4*ps, addr)
	require.Equal(t, []region{{3 * ps, ps}, {4*ps + 64, 3*ps - 64}}, p.released)
}

func TestAllocateMisalignedBackendResult(t *testing.T) {
	ps := pages.PageSize()
	p := &fixedProvider{addr: 3*ps + 8}
	a := New(Options{Provider: p, Sink: NopSink{}})
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Allocate(64, ps)
	require.Zero(t, addr)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorIs(t, err, ErrAlignment)
	require.Equal(t, []region{{3*ps + 8, 64}}, p.released)
}

func TestBackendOnlyFootprintStaysFlat(t *testing.T) {
	a, counting, _ := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	warm, err := th.Allocate(64, 8)
	require.NoError(t, err)
	th.Close()
	th.Deallocate(warm, 64, 8)
	require.False(t, a.CacheEnabled())

	before, ok := pages.Mapped(counting)
	require.True(t, ok)
	other := a.NewThread()
	for i := 0; i < 100000; i++ {
		addr, err := other.Allocate(64, 8)
		require.NoError(t, err)
		other.Deallocate(addr, 64, 8)
	}
	after, _ := pages.Mapped(counting)
	require.Equal(t, before, after)
	require.Equal(t, 100000, other.Stats().BackendReleases)
	require.Zero(t, other.Len())
}

func TestDeallocateIgnoresEmpty(t *testing.T) {
	a, counting, ring := newTestAllocator(t)
	th := a.NewThread()
	th.Deallocate(0, 64, 8)
	th.Deallocate(0x1000, 0, 8)
	require.Zero(t, ring.Total())
	require.Zero(t, counting.Stats().Releases)
	require.Zero(t, th.Stats().FreeCalls)
}

func TestResizeGrowPreservesContents(t *testing.T) {
	a, counting, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Allocate(100, 8)
	require.NoError(t, err)
	fill(addr, 100, 7)

	naddr, err := th.Resize(addr, 100, 8, 5000)
	require.NoError(t, err)
	requirePattern(t, naddr, 100, 7)
	fill(naddr, 5000, 9)

	require.Equal(t, Event{Kind: EventResize, Addr: naddr, Size: 5000, Source: SourceBackend}, lastEvent(t, ring))
	require.Equal(t, int64(1), counting.Stats().Releases)
	require.Zero(t, th.Len(), "the fallback path releases the old region")
	th.Deallocate(naddr, 5000, 8)
}

func TestResizeShrinkKeepsPrefix(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Allocate(3000, 16)
	require.NoError(t, err)
	fill(addr, 3000, 3)

	naddr, err := th.Resize(addr, 3000, 16, 40)
	require.NoError(t, err)
	require.Zero(t, naddr%16)
	requirePattern(t, naddr, 40, 3)
	th.Deallocate(naddr, 40, 16)
}

func TestResizeServedFromCache(t *testing.T) {
	a, _, ring := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Allocate(100, 8)
	require.NoError(t, err)
	spare, err := th.Allocate(4096, 8)
	require.NoError(t, err)
	th.Deallocate(spare, 4096, 8)
	fill(addr, 100, 5)

	naddr, err := th.Resize(addr, 100, 8, 200)
	require.NoError(t, err)
	require.Equal(t, spare, naddr)
	requirePattern(t, naddr, 100, 5)
	require.Equal(t, Event{Kind: EventResize, Addr: naddr, Size: 200, Source: SourceCache}, lastEvent(t, ring))
	assert.ElementsMatch(t, []Block{{Addr: spare + 200, Size: 3896}, {Addr: addr, Size: 100}}, th.Cached())
}

func TestResizeEdgeCases(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	th := a.NewThread()
	defer th.Close()

	addr, err := th.Resize(0, 0, 8, 64)
	require.NoError(t, err)
	require.NotZero(t, addr)

	same, err := th.Resize(addr, 64, 8, 64)
	require.NoError(t, err)
	require.Equal(t, addr, same)
	require.Zero(t, th.Stats().ResizeCalls)

	bad, err := th.Resize(addr, 64, 8, 0)
	require.ErrorIs(t, err, ErrInvalidLayout)
	require.Zero(t, bad)

	th.Deallocate(addr, 64, 8)
}

func TestResizeOutOfMemoryKeepsOriginal(t *testing.T) {
	sys := pages.System()
	addr, err := sys.Reserve(64)
	require.NoError(t, err)
	defer sys.Release(addr, 64) //nolint:errcheck

	a := New(Options{Provider: failingProvider{}, Sink: NopSink{}})
	th := a.NewThread()
	defer th.Close()

	fill(addr, 64, 4)
	naddr, err := th.Resize(addr, 64, 8, 1<<20)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Zero(t, naddr)
	requirePattern(t, addr, 64, 4)
}
