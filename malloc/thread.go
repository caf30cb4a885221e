package malloc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/pages"
)

// Thread is the per-thread context of an Allocator. It owns a free list
// and must only be used by one goroutine at a time.
type Thread struct {
	a      *Allocator
	list   *freeList // nil until first use and after Close
	closed bool

	// unwinding counts Guard cleanups running on behalf of a panic.
	unwinding int

	stats Stats
}

// Allocate returns the address of size bytes aligned to align.
//
// The free list is consulted first; on a miss the provider reserves a new
// region. A provider failure is returned as an error wrapping
// ErrOutOfMemory. Allocate never panics in production builds.
func (t *Thread) Allocate(size, align uintptr) (uintptr, error) {
	if !validLayout(size, align) {
		return 0, fmt.Errorf("%w: size=%d align=%d", ErrInvalidLayout, size, align)
	}
	t.stats.AllocCalls++

	if addr, ok := t.fromCache(size, align); ok {
		assertAligned(addr, align)
		ledgerAdd(addr, size)
		t.a.sink.Record(Event{Kind: EventAlloc, Addr: addr, Size: size, Source: SourceCache})
		return addr, nil
	}

	addr, err := t.reserve(size, align)
	if err != nil {
		return 0, err
	}
	ledgerAdd(addr, size)
	t.a.sink.Record(Event{Kind: EventAlloc, Addr: addr, Size: size, Source: SourceBackend})
	return addr, nil
}

// Deallocate returns a region obtained from Allocate or Resize. addr, size
// and align must match that call exactly and the region must not be used
// afterwards; violations are undefined behavior and are not detected
// outside memdebug builds.
//
// The block is cached for reuse by this Thread. When the list is full, the
// cache is unavailable, or a panic is unwinding, the region goes back to
// the provider.
//
// Only addr and size are needed to cache or release a block; the
// alignment is accepted so callers can pass their layout unchanged.
func (t *Thread) Deallocate(addr, size, _ uintptr) {
	if addr == 0 || size == 0 {
		return
	}
	t.stats.FreeCalls++
	ledgerRemove(addr, size)
	t.free(addr, size)
}

// Resize moves the region at addr to one of newSize bytes, preserving the
// first min(oldSize, newSize) bytes, and returns its address. On error the
// original region is untouched and still owned by the caller.
//
// A cached block that fits is used first and the old region is freed into
// the cache. Otherwise the provider resizes in place when it can, and as a
// last resort a new region is reserved, the data copied and the old region
// released.
func (t *Thread) Resize(addr, oldSize, align, newSize uintptr) (uintptr, error) {
	if addr == 0 || oldSize == 0 {
		return t.Allocate(newSize, align)
	}
	if !validLayout(newSize, align) {
		return 0, fmt.Errorf("%w: size=%d align=%d", ErrInvalidLayout, newSize, align)
	}
	if newSize == oldSize {
		return addr, nil
	}
	t.stats.ResizeCalls++
	keep := min(oldSize, newSize)

	if naddr, ok := t.fromCache(newSize, align); ok {
		assertAligned(naddr, align)
		move(naddr, addr, keep)
		ledgerRemove(addr, oldSize)
		ledgerAdd(naddr, newSize)
		t.free(addr, oldSize)
		t.a.sink.Record(Event{Kind: EventResize, Addr: naddr, Size: newSize, Source: SourceCache})
		return naddr, nil
	}

	if t.a.resizer != nil && align <= pages.PageSize() {
		// Provider regions are page aligned, which covers align.
		naddr, err := t.a.resizer.Resize(addr, oldSize, newSize)
		if err == nil {
			t.stats.BackendResizes++
			ledgerRemove(addr, oldSize)
			ledgerAdd(naddr, newSize)
			t.a.sink.Record(Event{Kind: EventResize, Addr: naddr, Size: newSize, Source: SourceBackend})
			return naddr, nil
		}
		if !errors.Is(err, pages.ErrNotResizable) {
			t.stats.BackendFailures++
		}
	}

	naddr, err := t.reserve(newSize, align)
	if err != nil {
		return 0, err
	}
	move(naddr, addr, keep)
	ledgerRemove(addr, oldSize)
	ledgerAdd(naddr, newSize)
	t.release(addr, oldSize)
	t.a.sink.Record(Event{Kind: EventResize, Addr: naddr, Size: newSize, Source: SourceBackend})
	return naddr, nil
}

// Close tears the Thread down. Cached blocks are abandoned, not released.
// Any later use of t behaves as if thread-local storage were gone: the
// operation goes to the provider and the Allocator's cache is disabled.
func (t *Thread) Close() {
	t.closed = true
	t.list = nil
}

// Guard runs cleanup. Deferred directly, it detects a panic in progress;
// cleanup then runs with the cache bypassed and the panic continues
// afterwards.
//
//	defer t.Guard(func() { t.Deallocate(addr, size, align) })
//
// Detecting the panic means recovering it, so the panic continues from
// Guard with a *GuardedPanic wrapping the original value and the stack
// at the point it was raised. A cleanup that panics itself replaces the
// original panic.
func (t *Thread) Guard(cleanup func()) {
	if r := recover(); r != nil {
		gp := newGuardedPanic(r)
		t.unwinding++
		defer func() {
			t.unwinding--
			panic(gp)
		}()
	}
	cleanup()
}

// Catch runs fn and returns the value it panicked with, or nil. A panic
// that went through Guard is reported with its original value.
func (t *Thread) Catch(fn func()) (recovered any) {
	defer func() {
		recovered = recover()
		if gp, ok := recovered.(*GuardedPanic); ok {
			recovered = gp.Value
		}
	}()
	fn()
	return nil
}

// Unwinding reports whether a Guard cleanup for a panic is running.
func (t *Thread) Unwinding() bool {
	return t.unwinding > 0
}

// Len returns the number of cached blocks.
func (t *Thread) Len() int {
	if t.list == nil {
		return 0
	}
	return t.list.len()
}

// Cached returns a copy of the cached blocks in slot order.
func (t *Thread) Cached() []Block {
	if t.list == nil {
		return nil
	}
	return t.list.snapshot()
}

// Stats returns the Thread's counters.
func (t *Thread) Stats() Stats {
	return t.stats
}

// local returns the free list, creating it on first use. It fails when
// the Thread is closed, which disables the cache for the whole Allocator.
func (t *Thread) local() (*freeList, bool) {
	if t.closed {
		t.a.DisableCache()
		return nil, false
	}
	if t.list == nil {
		t.list = new(freeList)
	}
	return t.list, true
}

// cacheable reports whether this operation may touch the free list.
func (t *Thread) cacheable() bool {
	return t.unwinding == 0 && t.a.enabled.Load()
}

// fromCache serves size bytes from the free list.
func (t *Thread) fromCache(size, align uintptr) (uintptr, bool) {
	if !t.cacheable() {
		t.stats.Bypassed++
		return 0, false
	}
	fl, ok := t.local()
	if !ok {
		t.stats.Bypassed++
		return 0, false
	}
	i := fl.findFit(size, align)
	if i < 0 {
		t.stats.CacheMisses++
		return 0, false
	}
	addr, split := fl.take(i, size)
	t.stats.CacheHits++
	if split {
		t.stats.Splits++
	}
	return addr, true
}

// free caches the block or releases it to the provider.
func (t *Thread) free(addr, size uintptr) {
	if !t.cacheable() {
		t.stats.Bypassed++
		t.release(addr, size)
		return
	}
	fl, ok := t.local()
	if !ok {
		t.stats.Bypassed++
		t.release(addr, size)
		return
	}
	if fl.insert(Block{Addr: addr, Size: size}) {
		t.stats.CacheInserts++
		t.a.sink.Record(Event{Kind: EventFree, Addr: addr, Size: size, Source: SourceCache})
		return
	}
	t.stats.Evictions++
	t.release(addr, size)
}

// reserve asks the provider for a new region. Provider regions are only
// page aligned, so larger alignments over-reserve by align-PageSize bytes
// and give the unused head and tail straight back.
func (t *Thread) reserve(size, align uintptr) (uintptr, error) {
	ps := pages.PageSize()
	total := size
	if align > ps {
		total = (size+ps-1)&^(ps-1) + align - ps
		if total < size {
			t.stats.BackendFailures++
			return 0, fmt.Errorf("%w: %d bytes at align %d", ErrOutOfMemory, size, align)
		}
	}
	addr, err := t.a.provider.Reserve(total)
	if err != nil {
		t.stats.BackendFailures++
		return 0, fmt.Errorf("%w: %d bytes: %w", ErrOutOfMemory, size, err)
	}
	aligned := (addr + align - 1) &^ (align - 1)
	if aligned+size > addr+total {
		_ = t.a.provider.Release(addr, total)
		t.stats.BackendFailures++
		return 0, fmt.Errorf("%w: %w: %d bytes at align %d", ErrOutOfMemory, ErrAlignment, size, align)
	}
	if head := aligned - addr; head > 0 {
		_ = t.a.provider.Release(addr, head)
	}
	if tail := addr + total - (aligned + size); tail > 0 {
		_ = t.a.provider.Release(aligned+size, tail)
	}
	t.stats.BackendReserves++
	return aligned, nil
}

// release returns a region to the provider. Errors are dropped:
// deallocation has no failure channel.
func (t *Thread) release(addr, size uintptr) {
	t.stats.BackendReleases++
	_ = t.a.provider.Release(addr, size)
	t.a.sink.Record(Event{Kind: EventFree, Addr: addr, Size: size, Source: SourceBackend})
}
