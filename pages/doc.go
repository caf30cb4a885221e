// Package pages provides the platform page providers that back memkit's
// allocator.
//
// A Provider reserves whole, read/write, process-private memory regions
// from the operating system and releases them again. Exactly one
// implementation is compiled per target platform:
//
//   - unix: anonymous private mmap(2) / munmap(2)
//   - linux additionally implements Resizer with mremap(2)
//   - windows: VirtualAlloc(MEM_RESERVE|MEM_COMMIT) / VirtualFree
//   - everything else: a Go-heap fallback that keeps regions reachable
//
// Regions returned by Reserve are page aligned. Release must be called with
// the address and size of a region previously handed out, or a sub-range
// of one. Each byte is released at most once; anything else is undefined
// behavior and is not checked.
//
// Sub-ranges may share their edge pages with live neighbours. Providers
// keep a count of the live bytes on such pages and return a page to the
// operating system when its last byte is released, so a long run of small
// reserve/release pairs keeps the footprint flat (see Mapped).
//
// Memory obtained from a Provider is invisible to the Go garbage collector.
// Never store Go pointers in it.
package pages
