package malloc

import (
	"runtime"
	"sync/atomic"

	"github.com/joshuapare/memkit/pages"
)

// Options configures an Allocator. The zero value is usable.
type Options struct {
	// Provider supplies pages on cache misses. Defaults to pages.System().
	Provider pages.Provider

	// Sink receives an event per operation. Defaults to a no-op sink, or to
	// slog output in memdebug builds with MEMKIT_LOG_ALLOC set.
	Sink Sink
}

// Allocator is the entry point shared by all threads. Its only mutable
// state is the cache-enabled flag; free lists live in Thread values.
type Allocator struct {
	provider pages.Provider
	resizer  pages.Resizer // nil when the provider cannot resize
	sink     Sink

	// enabled is a one-way circuit breaker: true until a Thread reports
	// that its local state is gone, false forever after.
	enabled atomic.Bool
}

// New returns an Allocator with its cache enabled.
func New(opts Options) *Allocator {
	if opts.Provider == nil {
		opts.Provider = pages.System()
	}
	if opts.Sink == nil {
		opts.Sink = defaultSink()
	}
	a := &Allocator{
		provider: opts.Provider,
		sink:     opts.Sink,
	}
	a.resizer, _ = opts.Provider.(pages.Resizer)
	a.enabled.Store(true)
	return a
}

// NewThread returns a context for the calling goroutine. Its free list is
// created on first use.
func (a *Allocator) NewThread() *Thread {
	return &Thread{a: a}
}

// Pin runs fn on the calling goroutine, locked to its OS thread, with a
// fresh Thread that is closed when fn returns or panics.
func (a *Allocator) Pin(fn func(t *Thread)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t := a.NewThread()
	defer t.Close()
	fn(t)
}

// CacheEnabled reports whether threads may use their free lists.
func (a *Allocator) CacheEnabled() bool {
	return a.enabled.Load()
}

// DisableCache switches every thread to the provider. It cannot be undone.
func (a *Allocator) DisableCache() {
	a.enabled.Store(false)
}

// Provider returns the page provider behind the allocator.
func (a *Allocator) Provider() pages.Provider {
	return a.provider
}

// DebugBuild reports whether the package was built with the memdebug tag.
func DebugBuild() bool {
	return debugBuild
}
