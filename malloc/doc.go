// Package malloc provides a page-backed allocator with a per-thread cache
// of recently freed blocks.
//
// # Overview
//
// Memory comes from a pages.Provider (mmap on unix, VirtualAlloc on
// windows) and lives outside the Go heap. Every allocation is a raw
// address/size pair; the allocator keeps no metadata for live allocations,
// so the caller must hand back exactly the size and alignment it asked for.
//
// Freed blocks are kept in a bounded, unordered free list owned by the
// freeing Thread. Later allocations on the same Thread are served from
// that list before the provider is asked for more pages:
//
//   - first-fit: the first block that is large enough and suitably aligned
//   - split: a larger block is cut, the remainder stays in the list
//   - swap-remove: an exactly matching block is replaced by the last entry
//   - overflow: a free that finds the list full goes straight to the provider
//
// Adjacent free blocks are never coalesced and blocks never move between
// threads.
//
// # Threads
//
// Go has no thread-local storage, so per-thread state is an explicit
// context:
//
//	a := malloc.Default()
//	a.Pin(func(t *malloc.Thread) {
//	    addr, err := t.Allocate(256, 16)
//	    if err != nil {
//	        return
//	    }
//	    defer t.Deallocate(addr, 256, 16)
//	    buf := malloc.Bytes(addr, 256)
//	    copy(buf, payload)
//	})
//
// A Thread must only be used by the goroutine that owns it. Pin locks the
// goroutine to its OS thread for the duration of the call. A Thread's free
// list is created on first use and abandoned by Close; blocks still cached
// at that point are leaked, never returned to the provider.
//
// # Cache Circuit Breaker
//
// Each Allocator carries a cache-enabled flag. Using a closed Thread is
// treated as thread-local storage being unavailable: the operation goes to
// the provider and the flag is switched off for good. From then on every
// Thread of that Allocator talks to the provider directly.
//
// # Panics
//
// Code that frees memory while a panic is unwinding should defer the free
// through Thread.Guard. Guard notices the panic, routes the cleanup to the
// provider without touching the free list, and lets the panic continue as
// a *GuardedPanic carrying the original value and stack.
//
// # Instrumentation
//
// An Allocator reports every operation to a Sink together with the path
// that served it (cache or backend). The default sink discards events.
// Building with the memdebug tag enables alignment assertions, a ledger of
// live allocations that panics on double or unknown frees, and slog output
// when MEMKIT_LOG_ALLOC is set.
//
// # Failure
//
// Allocate and Resize report provider exhaustion as an error wrapping
// ErrOutOfMemory. Deallocate has no failure channel; a full list or a
// failing release is absorbed silently.
package malloc
