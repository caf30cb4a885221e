//go:build !unix

package pages

import "slices"

// regions finds the reservation a page belongs to, for platforms that can
// only hand a reservation back as a whole.
type regions struct {
	bases []uintptr           // sorted
	held  map[uintptr]uintptr // base -> bytes still held
}

func (r *regions) add(base, length uintptr) {
	if r.held == nil {
		r.held = make(map[uintptr]uintptr)
	}
	i, _ := slices.BinarySearch(r.bases, base)
	r.bases = slices.Insert(r.bases, i, base)
	r.held[base] = length
}

// sub gives back length bytes at addr and reports the base of their
// reservation, and whether nothing of it is held any more.
func (r *regions) sub(addr, length uintptr) (base uintptr, empty bool) {
	i, found := slices.BinarySearch(r.bases, addr)
	if !found {
		i--
	}
	if i < 0 {
		return 0, false
	}
	base = r.bases[i]
	left := r.held[base] - min(length, r.held[base])
	if left > 0 {
		r.held[base] = left
		return base, false
	}
	r.bases = slices.Delete(r.bases, i, i+1)
	delete(r.held, base)
	return base, true
}
