package pages

import (
	"os"
	"sync"
)

// Provider reserves and releases page-granular memory regions.
type Provider interface {
	// Reserve returns the address of a new read/write region of at least size
	// bytes. The address is page aligned. Failure is reported as an error
	// wrapping ErrExhausted; Reserve never panics on exhaustion.
	Reserve(size uintptr) (uintptr, error)

	// Release gives a region back to the operating system. addr and size must
	// describe memory obtained from Reserve on the same Provider.
	Release(addr, size uintptr) error
}

// Resizer is implemented by providers that can grow or shrink a region
// without copying it in user space.
type Resizer interface {
	// Resize returns the new address of the region. It returns an error
	// wrapping ErrNotResizable when the region does not qualify; the original
	// region is then left untouched.
	Resize(addr, oldSize, newSize uintptr) (uintptr, error)
}

var (
	pageSizeOnce sync.Once
	pageSize     uintptr
)

// PageSize returns the operating system page size.
func PageSize() uintptr {
	pageSizeOnce.Do(func() {
		pageSize = uintptr(os.Getpagesize())
		if pageSize == 0 {
			pageSize = 4096
		}
	})
	return pageSize
}

// pageFloor rounds v down to a page boundary.
func pageFloor(v uintptr) uintptr {
	return v &^ (PageSize() - 1)
}

// pageCeil rounds v up to a page boundary.
func pageCeil(v uintptr) uintptr {
	ps := PageSize()
	return (v + ps - 1) &^ (ps - 1)
}
