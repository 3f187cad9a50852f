package collector

import (
	"context"
	"time"
)

// OSCollector reports the operating system name and version.
type OSCollector struct {
	BaseCollector
	read func(ctx context.Context) (OSData, error)
}

// NewOSCollector creates a new OS collector using the platform reader.
func NewOSCollector() *OSCollector {
	return &OSCollector{
		BaseCollector: NewBaseCollector("os"),
		read:          readOSInfo,
	}
}

// Collect gathers OS information.
func (c *OSCollector) Collect(ctx context.Context) (*MetricData, error) {
	data, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	return &MetricData{
		Type:      c.Name(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}
