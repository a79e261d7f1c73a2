package system

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot of the machine the encode runs on.
type HostStats struct {
	LogicalCPUs  int
	TotalMemMB   uint64
	AvailMemMB   uint64
	MemUsedPct   float64
	ProcessAlloc uint64
}

// ReadHostStats samples CPU and memory through gopsutil.
func ReadHostStats() (HostStats, error) {
	var st HostStats

	n, err := cpu.Counts(true)
	if err != nil || n == 0 {
		n = runtime.NumCPU()
	}
	st.LogicalCPUs = n

	vm, err := mem.VirtualMemory()
	if err != nil {
		return st, fmt.Errorf("read memory stats: %w", err)
	}
	st.TotalMemMB = vm.Total / 1024 / 1024
	st.AvailMemMB = vm.Available / 1024 / 1024
	st.MemUsedPct = vm.UsedPercent

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	st.ProcessAlloc = ms.Alloc / 1024 / 1024

	return st, nil
}

// EncoderThreads picks an ffmpeg thread count: the configured value when set,
// otherwise all logical CPUs minus one, halved when memory is nearly exhausted.
func EncoderThreads(configured int, st HostStats) int {
	if configured > 0 {
		return configured
	}
	threads := st.LogicalCPUs - 1
	if st.TotalMemMB > 0 && st.MemUsedPct > 85 {
		threads /= 2
	}
	if threads < 1 {
		threads = 1
	}
	return threads
}
