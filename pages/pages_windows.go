//go:build windows

package pages

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// virtualProvider reserves and commits address space in a single call.
type virtualProvider struct {
	ledger

	mu   sync.Mutex
	held regions
}

var system = &virtualProvider{}

// System returns the page provider for this platform.
func System() Provider {
	return system
}

// Reserve reserves and commits size bytes of read/write memory.
func (p *virtualProvider) Reserve(size uintptr) (uintptr, error) {
	if size == 0 {
		return 0, ErrBadRegion
	}
	addr, err := windows.VirtualAlloc(0, size,
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("%w: VirtualAlloc %d bytes: %w", ErrExhausted, size, err)
	}
	p.reserved(addr, size)
	p.mu.Lock()
	p.held.add(addr, pageCeil(size))
	p.mu.Unlock()
	return addr, nil
}

// Release decommits the pages of [addr, addr+size) that no other block
// lives on. VirtualFree(MEM_RELEASE) only takes a whole reservation, so
// the address range is released once all of its pages are decommitted.
func (p *virtualProvider) Release(addr, size uintptr) error {
	if addr == 0 || size == 0 {
		return ErrBadRegion
	}
	start, length := p.released(addr, size)
	if length == 0 {
		return nil
	}
	if err := windows.VirtualFree(start, length, windows.MEM_DECOMMIT); err != nil {
		return err
	}
	p.mu.Lock()
	base, empty := p.held.sub(start, length)
	p.mu.Unlock()
	if !empty {
		return nil
	}
	return windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}
