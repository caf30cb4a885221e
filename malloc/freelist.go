package malloc

// Capacity is the number of blocks a Thread can cache.
const Capacity = 512

// freeList is a fixed table of free blocks owned by one Thread.
// Occupied slots are always blocks[0:count]; removal swaps in the last slot.
type freeList struct {
	blocks [Capacity]Block
	count  int
}

// findFit returns the index of the first block with at least size bytes
// that starts on an align boundary, or -1.
func (fl *freeList) findFit(size, align uintptr) int {
	mask := align - 1
	for i := 0; i < fl.count; i++ {
		b := &fl.blocks[i]
		if b.Size >= size && b.Addr&mask == 0 {
			return i
		}
	}
	return -1
}

// take removes size bytes from the block at index i and returns their
// address. A larger block is split in place and its tail stays cached.
func (fl *freeList) take(i int, size uintptr) (addr uintptr, split bool) {
	b := fl.blocks[i]
	if b.Size > size {
		head, rest := b.Split(size)
		fl.blocks[i] = rest
		return head.Addr, true
	}

	last := fl.count - 1
	fl.blocks[i] = fl.blocks[last]
	fl.blocks[last] = Block{}
	fl.count = last
	return b.Addr, false
}

// insert appends b. It returns false, leaving the list untouched, when
// the list is full.
func (fl *freeList) insert(b Block) bool {
	if fl.count >= len(fl.blocks) {
		return false
	}
	fl.blocks[fl.count] = b
	fl.count++
	return true
}

// len returns the number of cached blocks.
func (fl *freeList) len() int {
	return fl.count
}

// snapshot copies the cached blocks.
func (fl *freeList) snapshot() []Block {
	out := make([]Block, fl.count)
	copy(out, fl.blocks[:fl.count])
	return out
}
