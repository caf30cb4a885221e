//go:build !unix && !windows

package pages

import (
	"sync"
	"unsafe"
)

// heapProvider carves page-aligned regions out of Go byte slices. The
// slices stay referenced from bufs so the collector never reclaims memory
// the allocator still hands out.
type heapProvider struct {
	ledger

	mu   sync.Mutex
	held regions
	bufs map[uintptr][]byte
}

var system = &heapProvider{bufs: make(map[uintptr][]byte)}

// System returns the page provider for this platform.
func System() Provider {
	return system
}

// Reserve allocates size bytes from the Go heap, aligned to a page.
func (h *heapProvider) Reserve(size uintptr) (uintptr, error) {
	if size == 0 {
		return 0, ErrBadRegion
	}
	buf := make([]byte, size+PageSize())
	addr := pageCeil(uintptr(unsafe.Pointer(&buf[0])))
	h.reserved(addr, size)

	h.mu.Lock()
	h.bufs[addr] = buf
	h.held.add(addr, pageCeil(size))
	h.mu.Unlock()
	return addr, nil
}

// Release drops a region's slice once none of its pages are in use.
func (h *heapProvider) Release(addr, size uintptr) error {
	if addr == 0 || size == 0 {
		return ErrBadRegion
	}
	start, length := h.released(addr, size)
	if length == 0 {
		return nil
	}
	h.mu.Lock()
	if base, empty := h.held.sub(start, length); empty {
		delete(h.bufs, base)
	}
	h.mu.Unlock()
	return nil
}
