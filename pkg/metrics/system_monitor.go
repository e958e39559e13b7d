package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats is one host snapshot.
type SystemStats struct {
	Timestamp time.Time    `json:"timestamp"`
	CPU       CPUStats     `json:"cpu"`
	Memory    MemoryStats  `json:"memory"`
	Disk      DiskStats    `json:"disk"`
	Runtime   RuntimeStats `json:"runtime"`
	Host      HostStats    `json:"host"`
}

type CPUStats struct {
	UsagePercent float64 `json:"usage_percent"`
	CountLogical int     `json:"count_logical"`
}

type MemoryStats struct {
	Total        uint64  `json:"total"`
	Available    uint64  `json:"available"`
	Used         uint64  `json:"used"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskStats covers the volume holding the data directory.
type DiskStats struct {
	Path         string  `json:"path"`
	Total        uint64  `json:"total"`
	Free         uint64  `json:"free"`
	UsagePercent float64 `json:"usage_percent"`
}

type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
}

type HostStats struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Uptime   uint64 `json:"uptime"`
}

// CollectSystemStats takes one snapshot. Probes that fail leave their section
// zeroed; the snapshot itself never fails.
func CollectSystemStats(ctx context.Context, dataDir string) *SystemStats {
	stats := &SystemStats{Timestamp: time.Now()}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPU.UsagePercent = pct[0]
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		stats.CPU.CountLogical = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.Memory = MemoryStats{
			Total:        vm.Total,
			Available:    vm.Available,
			Used:         vm.Used,
			UsagePercent: vm.UsedPercent,
		}
	}

	if dataDir == "" {
		dataDir = "."
	}
	if du, err := disk.UsageWithContext(ctx, dataDir); err == nil {
		stats.Disk = DiskStats{Path: dataDir, Total: du.Total, Free: du.Free, UsagePercent: du.UsedPercent}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.Runtime = RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
	}

	if hi, err := host.InfoWithContext(ctx); err == nil {
		stats.Host = HostStats{Hostname: hi.Hostname, OS: hi.OS, Platform: hi.Platform, Uptime: hi.Uptime}
	} else if name, err := os.Hostname(); err == nil {
		stats.Host.Hostname = name
	}
	return stats
}
