package malloc

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrOutOfMemory indicates the page provider could not satisfy a request.
	ErrOutOfMemory = errors.New("malloc: out of memory")

	// ErrInvalidLayout indicates a zero size or an alignment that is not a power of two.
	ErrInvalidLayout = errors.New("malloc: invalid layout")

	// ErrAlignment indicates the provider returned a region that cannot meet
	// the requested alignment even after over-reserving.
	ErrAlignment = errors.New("malloc: alignment exceeds provider guarantee")

	// ErrNilAllocator indicates Bind was called with a nil Allocator.
	ErrNilAllocator = errors.New("malloc: nil allocator")

	// ErrAlreadyBound indicates the process allocator was already bound or used.
	ErrAlreadyBound = errors.New("malloc: process allocator already bound")
)

// GuardedPanic is the value a panic continues with after passing through
// Thread.Guard.
type GuardedPanic struct {
	Value any    // the original panic value
	Stack []byte // goroutine stack where the panic was raised
}

func newGuardedPanic(v any) *GuardedPanic {
	if gp, ok := v.(*GuardedPanic); ok {
		return gp
	}
	return &GuardedPanic{Value: v, Stack: debug.Stack()}
}

func (p *GuardedPanic) Error() string {
	return fmt.Sprintf("%v\n\n%s", p.Value, p.Stack)
}

// Unwrap returns the original value when it is an error.
func (p *GuardedPanic) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}
