//go:build memdebug

package malloc

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

const debugBuild = true

// defaultSink logs every event to stderr when MEMKIT_LOG_ALLOC is set.
func defaultSink() Sink {
	if os.Getenv("MEMKIT_LOG_ALLOC") == "" {
		return NopSink{}
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewLogSink(slog.New(h))
}

func assertAligned(addr, align uintptr) {
	if addr&(align-1) != 0 {
		panic(fmt.Errorf("malloc: address %#x is not %d byte aligned", addr, align))
	}
}

// ledger tracks live allocations across all allocators in the process.
var ledger = struct {
	sync.Mutex
	live map[uintptr]uintptr // addr -> size
}{live: make(map[uintptr]uintptr)}

func ledgerAdd(addr, size uintptr) {
	ledger.Lock()
	defer ledger.Unlock()
	if old, ok := ledger.live[addr]; ok {
		panic(fmt.Errorf("malloc: %#x handed out twice (live size %d, new size %d)", addr, old, size))
	}
	ledger.live[addr] = size
}

func ledgerRemove(addr, size uintptr) {
	ledger.Lock()
	defer ledger.Unlock()
	got, ok := ledger.live[addr]
	if !ok {
		panic(fmt.Errorf("malloc: free of unknown or already freed address %#x", addr))
	}
	if got != size {
		panic(fmt.Errorf("malloc: free of %#x with size %d, allocated with %d", addr, size, got))
	}
	delete(ledger.live, addr)
}
