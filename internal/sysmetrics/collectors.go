package sysmetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"metricq"
)

// CPU reports total and per-core utilization.
type CPU struct{}

// NewCPU builds a CPU collector.
// Params: none.
// Returns: collector instance.
func NewCPU() *CPU {
	return &CPU{}
}

func (c *CPU) Name() string { return "cpu" }

// Scrape reads utilization since the previous scrape.
// Params: ctx for cancellation.
// Returns: snapshot entry or gopsutil error.
func (c *CPU) Scrape(ctx context.Context) (metricq.Entry, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	if len(total) == 0 {
		return nil, fmt.Errorf("cpu percent: no samples")
	}

	fields := []Field{
		{Name: "CPUUtilization", Value: metricq.Metric{
			Observations: []metricq.Observation{metricq.Floating(total[0])},
			Unit:         metricq.UnitPercent,
		}},
	}

	// Per-core percentages fold into one distribution metric.
	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err == nil && len(perCore) > 0 {
		obs := make([]metricq.Observation, len(perCore))
		for i, pct := range perCore {
			obs[i] = metricq.Floating(pct)
		}
		fields = append(fields, Field{Name: "CPUCoreUtilization", Value: metricq.Metric{
			Observations: obs,
			Unit:         metricq.UnitPercent,
		}})
	}

	return Snapshot{Source: "cpu", Time: time.Now(), Fields: fields}, nil
}

// Memory reports virtual memory usage.
type Memory struct{}

// NewMemory builds a memory collector.
// Params: none.
// Returns: collector instance.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Name() string { return "memory" }

// Scrape reads current virtual memory statistics.
// Params: ctx for cancellation.
// Returns: snapshot entry or gopsutil error.
func (m *Memory) Scrape(ctx context.Context) (metricq.Entry, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}

	return Snapshot{
		Source: "memory",
		Time:   time.Now(),
		Fields: []Field{
			{Name: "MemoryUtilization", Value: metricq.Metric{
				Observations: []metricq.Observation{metricq.Floating(vm.UsedPercent)},
				Unit:         metricq.UnitPercent,
			}},
			{Name: "MemoryUsedBytes", Value: metricq.Metric{
				Observations: []metricq.Observation{metricq.Unsigned(vm.Used)},
				Unit:         metricq.UnitBytes,
			}},
			{Name: "MemoryAvailableBytes", Value: metricq.Metric{
				Observations: []metricq.Observation{metricq.Unsigned(vm.Available)},
				Unit:         metricq.UnitBytes,
			}},
		},
	}, nil
}

// Disk reports usage for one mount point.
type Disk struct {
	path string
}

// NewDisk builds a disk collector for the given mount point.
// Params: path mount point to measure.
// Returns: collector instance.
func NewDisk(path string) *Disk {
	return &Disk{path: path}
}

func (d *Disk) Name() string { return "disk" }

// Scrape reads usage of the configured mount point.
// Params: ctx for cancellation.
// Returns: snapshot entry or gopsutil error.
func (d *Disk) Scrape(ctx context.Context) (metricq.Entry, error) {
	usage, err := disk.UsageWithContext(ctx, d.path)
	if err != nil {
		return nil, fmt.Errorf("disk usage %q: %w", d.path, err)
	}

	return Snapshot{
		Source: "disk",
		Time:   time.Now(),
		Fields: []Field{
			{Name: "DiskUtilization", Value: metricq.Metric{
				Observations: []metricq.Observation{metricq.Floating(usage.UsedPercent)},
				Unit:         metricq.UnitPercent,
			}},
			{Name: "DiskUsedBytes", Value: metricq.Metric{
				Observations: []metricq.Observation{metricq.Unsigned(usage.Used)},
				Unit:         metricq.UnitBytes,
			}},
			{Name: "DiskFreeBytes", Value: metricq.Metric{
				Observations: []metricq.Observation{metricq.Unsigned(usage.Free)},
				Unit:         metricq.UnitBytes,
			}},
		},
	}, nil
}
