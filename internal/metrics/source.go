package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"sysdash/internal/models"
)

// ErrMetricUnavailable marks a per-metric read failure. The sampler skips
// that metric for the tick; the remaining metrics still update.
var ErrMetricUnavailable = errors.New("metric unavailable")

// Source reads instantaneous host metrics. Implementations must be safe for
// use from the sampler goroutine.
type Source interface {
	// ProcessCount returns the number of currently running OS processes.
	ProcessCount(ctx context.Context) (int, error)
	// CPUPercent returns average CPU utilization over window. The call
	// blocks for the full window; it is the dominant latency source in a
	// tick, so the effective tick period is max(interval, window).
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	// MemoryUsedMB returns currently used system memory in megabytes.
	MemoryUsedMB(ctx context.Context) (uint64, error)
	// StaticInfo returns host facts read once at startup.
	StaticInfo(ctx context.Context) (models.StaticInfo, error)
}

// HostSource reads metrics from the local host via gopsutil.
type HostSource struct{}

// NewHostSource returns a Source backed by the local OS.
func NewHostSource() *HostSource {
	return &HostSource{}
}

func (s *HostSource) ProcessCount(ctx context.Context) (int, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: process count: %v", ErrMetricUnavailable, err)
	}
	return len(pids), nil
}

func (s *HostSource) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil || len(percents) == 0 {
		return 0, fmt.Errorf("%w: cpu percent: %v", ErrMetricUnavailable, err)
	}
	return clampFloat(percents[0], 0, 100), nil
}

func (s *HostSource) MemoryUsedMB(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil || vm == nil {
		return 0, fmt.Errorf("%w: virtual memory: %v", ErrMetricUnavailable, err)
	}
	return vm.Used / 1_000_000, nil
}

func (s *HostSource) StaticInfo(ctx context.Context) (models.StaticInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		return models.StaticInfo{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil || vm == nil {
		return models.StaticInfo{}, fmt.Errorf("total memory: %w", err)
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cores <= 0 {
		cores = runtime.NumCPU()
	}
	osName := info.Platform
	if osName == "" {
		osName = info.OS
	}
	return models.StaticInfo{
		OSName:     osName,
		CoreCount:  cores,
		TotalRAMMB: vm.Total / 1_000_000,
		BootTime:   time.Unix(int64(info.BootTime), 0),
	}, nil
}

func clampFloat(val, min, max float64) float64 {
	if math.IsNaN(val) {
		return min
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
