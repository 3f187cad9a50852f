// Package collector gathers host resource metrics for the heartbeat cycle.
package collector

import (
	"context"

	"cycleagent/internal/settings"
)

// Collector defines the interface for all metric collectors.
type Collector interface {
	// Name returns the unique identifier for this collector.
	Name() string

	// Collect gathers metrics and returns the collected data.
	Collect(ctx context.Context) (*MetricData, error)

	// Configure applies the given configuration to the collector.
	Configure(cfg settings.CollectorConfig) error

	// Enabled returns whether the collector is enabled.
	Enabled() bool
}

// BaseCollector provides common functionality for all collectors.
type BaseCollector struct {
	name    string
	enabled bool
}

// NewBaseCollector creates a new, enabled BaseCollector with the given name.
func NewBaseCollector(name string) BaseCollector {
	return BaseCollector{
		name:    name,
		enabled: true,
	}
}

// Name returns the collector name.
func (b *BaseCollector) Name() string {
	return b.name
}

// Enabled returns whether the collector is enabled.
func (b *BaseCollector) Enabled() bool {
	return b.enabled
}

// SetEnabled sets whether the collector is enabled.
func (b *BaseCollector) SetEnabled(enabled bool) {
	b.enabled = enabled
}

// Configure applies the enable flag. Collectors with extra options override it.
func (b *BaseCollector) Configure(cfg settings.CollectorConfig) error {
	b.SetEnabled(cfg.Enabled)
	return nil
}
