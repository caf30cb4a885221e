//go:build linux

package pages

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Resize moves or extends a region with mremap(2).
//
// Only regions that start on a page boundary and span whole pages qualify:
// anything else may share a page with a neighbouring block, and remapping
// that page would drag the neighbour along.
func (p *mmapProvider) Resize(addr, oldSize, newSize uintptr) (uintptr, error) {
	if addr == 0 || oldSize == 0 || newSize == 0 {
		return 0, ErrBadRegion
	}
	ps := PageSize()
	if addr%ps != 0 || oldSize%ps != 0 {
		return 0, ErrNotResizable
	}
	ptr, err := unix.MremapPtr(unsafe.Pointer(addr), oldSize, nil, newSize, //nolint:govet // off-heap address
		unix.MREMAP_MAYMOVE)
	if err != nil {
		return 0, fmt.Errorf("%w: mremap %d -> %d: %w", ErrExhausted, oldSize, newSize, err)
	}
	naddr := uintptr(ptr)
	p.resized(oldSize, naddr, newSize)
	return naddr, nil
}
