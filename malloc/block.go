package malloc

// Block is a free memory region.
type Block struct {
	Addr uintptr // start of the region
	Size uintptr // length in bytes, > 0
}

// End returns the first address past the block.
func (b Block) End() uintptr {
	return b.Addr + b.Size
}

// Aligned reports whether the block starts on an align boundary.
// align must be a power of two.
func (b Block) Aligned(align uintptr) bool {
	return b.Addr&(align-1) == 0
}

// Split cuts n bytes off the front of b. The caller guarantees 0 < n < b.Size.
func (b Block) Split(n uintptr) (head, rest Block) {
	return Block{Addr: b.Addr, Size: n}, Block{Addr: b.Addr + n, Size: b.Size - n}
}

// validLayout reports whether size and align describe an allocatable request.
func validLayout(size, align uintptr) bool {
	return size > 0 && align > 0 && align&(align-1) == 0
}
