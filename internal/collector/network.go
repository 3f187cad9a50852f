package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/net"

	"cycleagent/internal/settings"
)

var virtualInterfacePrefixes = []string{
	"veth", "docker", "br-", "virbr", "vbox", "vmnet",
	"flannel", "cni", "calico", "weave",
}

// NetworkCollector reports interface counters and the byte rates since the
// previous heartbeat.
type NetworkCollector struct {
	BaseCollector
	clock    clock.Clock
	counters func(ctx context.Context) ([]net.IOCountersStat, error)

	mu         sync.Mutex
	interfaces []string
	last       map[string]net.IOCountersStat
	lastAt     time.Time
}

// NewNetworkCollector creates a new network collector.
func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{
		BaseCollector: NewBaseCollector(settings.CollectorNetwork),
		clock:         clock.New(),
		counters: func(ctx context.Context) ([]net.IOCountersStat, error) {
			return net.IOCountersWithContext(ctx, true)
		},
		last: make(map[string]net.IOCountersStat),
	}
}

// Configure applies the enable flag and the interface filter.
func (c *NetworkCollector) Configure(cfg settings.CollectorConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetEnabled(cfg.Enabled)
	c.interfaces = cfg.Interfaces
	return nil
}

// Collect gathers network metrics.
func (c *NetworkCollector) Collect(ctx context.Context) (*MetricData, error) {
	counters, err := c.counters(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	elapsed := now.Sub(c.lastAt).Seconds()
	haveLast := !c.lastAt.IsZero() && elapsed > 0

	seen := make(map[string]net.IOCountersStat, len(counters))
	interfaces := make([]NetworkInterface, 0, len(counters))
	for _, counter := range counters {
		if !c.include(counter.Name) {
			continue
		}
		seen[counter.Name] = counter

		iface := NetworkInterface{
			Name:        counter.Name,
			BytesSent:   counter.BytesSent,
			BytesRecv:   counter.BytesRecv,
			PacketsSent: counter.PacketsSent,
			PacketsRecv: counter.PacketsRecv,
			ErrorsIn:    counter.Errin,
			ErrorsOut:   counter.Errout,
		}
		if prev, ok := c.last[counter.Name]; ok && haveLast {
			iface.BytesSentRate = rate(prev.BytesSent, counter.BytesSent, elapsed)
			iface.BytesRecvRate = rate(prev.BytesRecv, counter.BytesRecv, elapsed)
		}
		interfaces = append(interfaces, iface)
	}

	c.last = seen
	c.lastAt = now

	return &MetricData{
		Type:      c.Name(),
		Timestamp: now.UTC(),
		Data:      NetworkData{Interfaces: interfaces},
	}, nil
}

// rate returns zero when the counter went backwards (reset or wraparound).
func rate(prev, cur uint64, seconds float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / seconds
}

func (c *NetworkCollector) include(name string) bool {
	if len(c.interfaces) > 0 {
		for _, iface := range c.interfaces {
			if strings.EqualFold(iface, name) {
				return true
			}
		}
		return false
	}

	lower := strings.ToLower(name)
	if lower == "lo" || strings.HasPrefix(lower, "loopback") {
		return false
	}
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}
