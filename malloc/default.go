package malloc

import (
	"sync"
	"sync/atomic"
)

var (
	process atomic.Pointer[Allocator]

	// defaultAllocator builds the default Allocator at most once. It only
	// wins the slot when Bind has not filled it first.
	defaultAllocator = sync.OnceValue(func() *Allocator {
		process.CompareAndSwap(nil, New(Options{}))
		return process.Load()
	})
)

// Default returns the process-wide allocator, creating it with default
// Options on first use.
func Default() *Allocator {
	if a := process.Load(); a != nil {
		return a
	}
	return defaultAllocator()
}

// Bind installs a as the process-wide allocator. It must be called before
// the first call to Default and succeeds at most once.
func Bind(a *Allocator) error {
	if a == nil {
		return ErrNilAllocator
	}
	if !process.CompareAndSwap(nil, a) {
		return ErrAlreadyBound
	}
	return nil
}
