package pages

import "sync"

// ledger counts the live bytes of pages that more than one block lives on.
//
// Blocks split off a reservation share their edge pages with their
// neighbours, so a page may only go back to the operating system once
// every byte of it has been released. Pages nobody released part of are
// not tracked at all.
type ledger struct {
	mu sync.Mutex

	// tails holds the bytes a reservation owns of its last page, when it
	// ends mid-page.
	tails map[uintptr]uintptr

	// live holds the bytes still in use of partly released pages.
	live map[uintptr]uintptr

	// mapped is the number of bytes currently held, in whole pages.
	mapped uintptr
}

// reserved records a new page-aligned region.
func (l *ledger) reserved(addr, size uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mapped += pageCeil(size)
	if r := size % PageSize(); r != 0 {
		if l.tails == nil {
			l.tails = make(map[uintptr]uintptr)
		}
		l.tails[addr+size-r] = r
	}
}

// released accounts for [addr, addr+size) and returns the pages that
// are now entirely unused. Only the first and last page can be shared,
// so the result is always one contiguous run, possibly empty.
func (l *ledger) released(addr, size uintptr) (start, length uintptr) {
	ps := PageSize()
	end := addr + size
	first, last := pageFloor(addr), pageFloor(end-1)

	l.mu.Lock()
	defer l.mu.Unlock()
	freeFirst := l.drop(first, min(end, first+ps)-addr)
	freeLast := freeFirst
	if last != first {
		freeLast = l.drop(last, end-last)
	}

	start, stop := first, last+ps
	if !freeFirst {
		start += ps
	}
	if !freeLast {
		stop -= ps
	}
	if stop <= start {
		return start, 0
	}
	l.mapped -= stop - start
	return start, stop - start
}

// resized records that a whole-page region of oldSize bytes now lives at
// naddr with newSize bytes.
func (l *ledger) resized(oldSize, naddr, newSize uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mapped += pageCeil(newSize)
	l.mapped -= pageCeil(oldSize)
	if r := newSize % PageSize(); r != 0 {
		if l.tails == nil {
			l.tails = make(map[uintptr]uintptr)
		}
		l.tails[naddr+newSize-r] = r
	}
}

// drop releases n bytes of page p and reports whether it is now unused.
func (l *ledger) drop(p, n uintptr) bool {
	live, ok := l.live[p]
	if !ok {
		live = PageSize()
		if t, ok := l.tails[p]; ok {
			live = t
		}
	}
	if n < live {
		if l.live == nil {
			l.live = make(map[uintptr]uintptr)
		}
		l.live[p] = live - n
		return false
	}
	delete(l.live, p)
	delete(l.tails, p)
	return true
}

// footprint returns the bytes currently held.
func (l *ledger) footprint() uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mapped
}

// tracked returns how many pages the ledger holds state for.
func (l *ledger) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live) + len(l.tails)
}

// footprinter is implemented by providers that know how much memory they
// hold from the operating system.
type footprinter interface {
	footprint() uintptr
}

// Mapped returns the bytes p currently holds from the operating system,
// looking through Counting wrappers. It reports false when p does not
// keep track.
func Mapped(p Provider) (uintptr, bool) {
	for {
		switch v := p.(type) {
		case footprinter:
			return v.footprint(), true
		case *Counting:
			p = v.P
		default:
			return 0, false
		}
	}
}
