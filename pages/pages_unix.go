//go:build unix

package pages

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapProvider maps anonymous private memory.
type mmapProvider struct {
	ledger
}

var system = &mmapProvider{}

// System returns the page provider for this platform.
func System() Provider {
	return system
}

// Reserve maps a fresh anonymous region of size bytes.
func (p *mmapProvider) Reserve(size uintptr) (uintptr, error) {
	if size == 0 {
		return 0, ErrBadRegion
	}
	ptr, err := unix.MmapPtr(-1, 0, nil, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("%w: mmap %d bytes: %w", ErrExhausted, size, err)
	}
	addr := uintptr(ptr)
	p.reserved(addr, size)
	return addr, nil
}

// Release unmaps the pages of [addr, addr+size) that no other block
// lives on. A page shared with a live neighbour is unmapped by whichever
// Release frees its last byte.
func (p *mmapProvider) Release(addr, size uintptr) error {
	if addr == 0 || size == 0 {
		return ErrBadRegion
	}
	start, length := p.released(addr, size)
	if length == 0 {
		return nil
	}
	err := unix.MunmapPtr(unsafe.Pointer(start), length) //nolint:govet // off-heap address
	if errors.Is(err, unix.EINVAL) {
		// Already unmapped; treat as no-op for callers.
		return nil
	}
	return err
}
