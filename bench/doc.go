// Package bench drives allocation workloads against memkit and the
// allocators it is compared with.
//
// A run is described by a flag set (see Flags), turned into a Config,
// and executed by Run. Each worker goroutine owns one Target, so
// targets need not be safe for concurrent use.
package bench
