package collector

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/host"

	"cycleagent/internal/settings"
)

// UptimeCollector reports boot time and uptime.
type UptimeCollector struct {
	BaseCollector
	clock    clock.Clock
	bootTime func(ctx context.Context) (uint64, error)
}

// NewUptimeCollector creates a new uptime collector.
func NewUptimeCollector() *UptimeCollector {
	return &UptimeCollector{
		BaseCollector: NewBaseCollector(settings.CollectorUptime),
		clock:         clock.New(),
		bootTime:      host.BootTimeWithContext,
	}
}

// Collect gathers boot time and uptime.
func (c *UptimeCollector) Collect(ctx context.Context) (*MetricData, error) {
	boot, err := c.bootTime(ctx)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	bootTime := time.Unix(int64(boot), 0).UTC()
	uptime := now.Sub(bootTime)
	if uptime < 0 {
		uptime = 0
	}

	return &MetricData{
		Type:      c.Name(),
		Timestamp: now.UTC(),
		Data: UptimeData{
			BootTimeUnix:  bootTime.Unix(),
			BootTimeStr:   bootTime.Format(time.RFC3339),
			UptimeMinutes: uptime.Minutes(),
		},
	}, nil
}
