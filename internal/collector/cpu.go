package collector

import (
	"context"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/cpu"

	"cycleagent/internal/settings"
)

// DefaultCPUSampleWindow is how long the CPU collector measures usage.
const DefaultCPUSampleWindow = 200 * time.Millisecond

// CPUCollector reports overall and per-core CPU usage.
type CPUCollector struct {
	BaseCollector
	clock  clock.Clock
	window time.Duration

	percent func(ctx context.Context, window time.Duration, perCore bool) ([]float64, error)
	times   func(ctx context.Context) ([]cpu.TimesStat, error)
}

// NewCPUCollector creates a new CPU collector.
func NewCPUCollector() *CPUCollector {
	return &CPUCollector{
		BaseCollector: NewBaseCollector(settings.CollectorCPU),
		clock:         clock.New(),
		window:        DefaultCPUSampleWindow,
		percent:       cpu.PercentWithContext,
		times: func(ctx context.Context) ([]cpu.TimesStat, error) {
			return cpu.TimesWithContext(ctx, false)
		},
	}
}

// Collect blocks for the sample window and returns the measured usage.
func (c *CPUCollector) Collect(ctx context.Context) (*MetricData, error) {
	total, err := c.percent(ctx, c.window, false)
	if err != nil {
		return nil, err
	}
	// Per-core usage since the previous call; optional.
	perCore, err := c.percent(ctx, 0, true)
	if err != nil {
		perCore = nil
	}
	times, err := c.times(ctx)
	if err != nil {
		return nil, err
	}

	data := CPUData{CoreCount: runtime.NumCPU(), PerCore: perCore}
	if len(total) > 0 {
		data.UsagePercent = total[0]
	}
	if len(times) > 0 {
		applyCPUShares(&data, times[0])
	}

	return &MetricData{
		Type:      c.Name(),
		Timestamp: c.clock.Now().UTC(),
		Data:      data,
	}, nil
}

// applyCPUShares converts cumulative CPU times into percentages of the total.
func applyCPUShares(data *CPUData, t cpu.TimesStat) {
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	if total <= 0 {
		return
	}
	data.User = t.User / total * 100
	data.System = t.System / total * 100
	data.Idle = t.Idle / total * 100
	data.IOWait = t.Iowait / total * 100
}
