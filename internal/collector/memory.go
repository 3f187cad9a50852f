package collector

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/mem"

	"cycleagent/internal/settings"
)

// MemoryCollector reports physical memory and swap usage.
type MemoryCollector struct {
	BaseCollector
	clock   clock.Clock
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	swap    func(ctx context.Context) (*mem.SwapMemoryStat, error)
}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		BaseCollector: NewBaseCollector(settings.CollectorMemory),
		clock:         clock.New(),
		virtual:       mem.VirtualMemoryWithContext,
		swap:          mem.SwapMemoryWithContext,
	}
}

// Collect gathers memory metrics. Missing swap information is reported as zero.
func (c *MemoryCollector) Collect(ctx context.Context) (*MetricData, error) {
	vm, err := c.virtual(ctx)
	if err != nil {
		return nil, err
	}
	swap, err := c.swap(ctx)
	if err != nil || swap == nil {
		swap = &mem.SwapMemoryStat{}
	}

	return &MetricData{
		Type:      c.Name(),
		Timestamp: c.clock.Now().UTC(),
		Data: MemoryData{
			TotalBytes:     vm.Total,
			UsedBytes:      vm.Used,
			AvailableBytes: vm.Available,
			UsagePercent:   vm.UsedPercent,
			SwapTotalBytes: swap.Total,
			SwapUsedBytes:  swap.Used,
			SwapPercent:    swap.UsedPercent,
		},
	}, nil
}
