package bench

import (
	"fmt"
	"io"
	"os"

	sigar "github.com/cloudfoundry/gosigar"
	humanize "github.com/dustin/go-humanize"
)

// SysMem is a snapshot of host and process memory.
type SysMem struct {
	Total    uint64 `json:"total"`
	Used     uint64 `json:"used"`
	Free     uint64 `json:"free"`
	Resident uint64 `json:"resident"` // this process
	Virtual  uint64 `json:"virtual"`  // this process
}

// ReadSysMem samples host memory and this process's footprint.
func ReadSysMem() (SysMem, error) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return SysMem{}, fmt.Errorf("bench: read host memory: %w", err)
	}
	proc := sigar.ProcMem{}
	if err := proc.Get(os.Getpid()); err != nil {
		return SysMem{}, fmt.Errorf("bench: read process memory: %w", err)
	}
	return SysMem{
		Total:    mem.Total,
		Used:     mem.Used,
		Free:     mem.Free,
		Resident: proc.Resident,
		Virtual:  proc.Size,
	}, nil
}

func (m SysMem) String() string {
	return fmt.Sprintf("host %s total, %s free; process %s resident",
		humanize.Bytes(m.Total), humanize.Bytes(m.Free), humanize.Bytes(m.Resident))
}

// WriteReport prints one line per result.
func WriteReport(w io.Writer, results []Result) error {
	if _, err := fmt.Fprintf(w, "%-8s %-44s %7s %14s %10s %10s %8s\n",
		"target", "pattern", "threads", "ops", "bytes", "ns/op", "hits"); err != nil {
		return err
	}
	for _, r := range results {
		hits := "-"
		if r.Memkit != nil {
			hits = humanize.FtoaWithDigits(100*r.HitRatio(), 1) + "%"
		}
		_, err := fmt.Fprintf(w, "%-8s %-44s %7d %14s %10s %10s %8s\n",
			r.Target,
			r.Pattern,
			r.Threads,
			humanize.Comma(r.Tally.Ops()),
			humanize.Bytes(uint64(r.Tally.Bytes)),
			humanize.FtoaWithDigits(r.NsPerOp(), 2),
			hits,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
