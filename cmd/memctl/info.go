package main

import (
	"runtime"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/bench"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/malloc"
	"github.com/joshuapare/memkit/pages"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show allocator and platform parameters",
		Long: `The info command prints the page size, free-list capacity and build
mode memkit runs with, along with host memory figures.

Example:
  memctl info
  memctl info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
}

// AllocatorInfo describes the allocator as built for this platform.
type AllocatorInfo struct {
	OS            string        `json:"os"`
	Arch          string        `json:"arch"`
	PageSize      uintptr       `json:"page_size"`
	Capacity      int           `json:"free_list_capacity"`
	DebugBuild    bool          `json:"debug_build"`
	InPlaceResize bool          `json:"in_place_resize"`
	CommonSizes   []uintptr     `json:"common_sizes"`
	SysMem        *bench.SysMem `json:"sysmem,omitempty"`
}

func collectInfo() AllocatorInfo {
	_, resizable := pages.System().(pages.Resizer)
	info := AllocatorInfo{
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		PageSize:      pages.PageSize(),
		Capacity:      malloc.Capacity,
		DebugBuild:    malloc.DebugBuild(),
		InPlaceResize: resizable,
		CommonSizes:   bench.CommonSizes,
	}
	if mem, err := bench.ReadSysMem(); err == nil {
		info.SysMem = &mem
	} else {
		logger.Warn("sysmem unavailable", "err", err)
	}
	return info
}

func runInfo(args []string) error {
	info := collectInfo()
	if jsonOut {
		return printJSON(info)
	}

	printInfo("Platform:        %s/%s\n", info.OS, info.Arch)
	printInfo("Page size:       %s\n", humanize.IBytes(uint64(info.PageSize)))
	printInfo("Free list:       %d blocks per thread\n", info.Capacity)
	printInfo("Debug build:     %t\n", info.DebugBuild)
	printInfo("In-place resize: %t\n", info.InPlaceResize)
	if info.SysMem != nil {
		m := info.SysMem
		printInfo("Host memory:     %s total, %s used, %s free\n",
			humanize.IBytes(m.Total), humanize.IBytes(m.Used), humanize.IBytes(m.Free))
		printVerbose("Process:         %s resident, %s virtual\n",
			humanize.IBytes(m.Resident), humanize.IBytes(m.Virtual))
	}
	return nil
}
