package models

import "time"

// Metric names for the fixed set of tracked series.
const (
	MetricProcesses = "processes"
	MetricCPU       = "cpu"
	MetricMemory    = "memory"
)

// MetricNames lists every tracked series in display order.
var MetricNames = []string{MetricCPU, MetricProcesses, MetricMemory}

// Sample is one observation of a metric. Immutable once created.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SystemSnapshot captures host-level resource usage read in a single tick.
// It is transient: values are folded into the rolling series and discarded.
type SystemSnapshot struct {
	ProcessCount int       `json:"process_count"`
	CPUPercent   float64   `json:"cpu_percent"`
	MemoryUsedMB uint64    `json:"memory_used_mb"`
	SampledAt    time.Time `json:"sampled_at"`
}

// StaticInfo holds host facts that do not change during a monitoring session.
// Read once at startup.
type StaticInfo struct {
	OSName     string    `json:"os_name"`
	CoreCount  int       `json:"core_count"`
	TotalRAMMB uint64    `json:"total_ram_mb"`
	BootTime   time.Time `json:"boot_time"`
}
