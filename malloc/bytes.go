package malloc

import "unsafe"

// Bytes returns the memory at [addr, addr+size) as a byte slice. The slice
// is only valid until the region is deallocated.
func Bytes(addr, size uintptr) []byte {
	if addr == 0 || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size) //nolint:govet // off-heap address
}

// move copies n bytes from src to dst. The regions must not overlap.
func move(dst, src, n uintptr) {
	if n == 0 {
		return
	}
	copy(Bytes(dst, n), Bytes(src, n))
}
