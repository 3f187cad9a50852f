package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/net"

	"cycleagent/internal/settings"
)

func newTestNetworkCollector(samples ...[]net.IOCountersStat) (*NetworkCollector, *clock.Mock) {
	clk := clock.NewMock()
	c := NewNetworkCollector()
	c.clock = clk
	i := 0
	c.counters = func(context.Context) ([]net.IOCountersStat, error) {
		s := samples[i]
		if i < len(samples)-1 {
			i++
		}
		return s, nil
	}
	return c, clk
}

func interfaces(t *testing.T, m *MetricData) []NetworkInterface {
	t.Helper()
	data, ok := m.Data.(NetworkData)
	if !ok {
		t.Fatalf("Data is not NetworkData: %T", m.Data)
	}
	return data.Interfaces
}

func TestNetworkCollector_RatesBetweenSamples(t *testing.T) {
	c, clk := newTestNetworkCollector(
		[]net.IOCountersStat{{Name: "eth0", BytesSent: 1000, BytesRecv: 5000}},
		[]net.IOCountersStat{{Name: "eth0", BytesSent: 1750, BytesRecv: 12500}},
	)

	first, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := interfaces(t, first); got[0].BytesSentRate != 0 || got[0].BytesRecvRate != 0 {
		t.Errorf("first sample should have no rates: %+v", got[0])
	}

	clk.Add(75 * time.Second)
	second, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	got := interfaces(t, second)[0]
	if got.BytesSentRate != 10 {
		t.Errorf("BytesSentRate = %v, want 10", got.BytesSentRate)
	}
	if got.BytesRecvRate != 100 {
		t.Errorf("BytesRecvRate = %v, want 100", got.BytesRecvRate)
	}
}

func TestNetworkCollector_CounterReset(t *testing.T) {
	c, clk := newTestNetworkCollector(
		[]net.IOCountersStat{{Name: "eth0", BytesSent: 9000}},
		[]net.IOCountersStat{{Name: "eth0", BytesSent: 100}},
	)

	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	clk.Add(10 * time.Second)
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if rate := interfaces(t, m)[0].BytesSentRate; rate != 0 {
		t.Errorf("expected zero rate after reset, got %v", rate)
	}
}

func TestNetworkCollector_SkipsVirtualInterfaces(t *testing.T) {
	c, _ := newTestNetworkCollector([]net.IOCountersStat{
		{Name: "lo"},
		{Name: "docker0"},
		{Name: "veth12ab"},
		{Name: "Loopback Pseudo-Interface 1"},
		{Name: "eth0"},
		{Name: "Ethernet 2"},
	})

	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	got := interfaces(t, m)
	if len(got) != 2 || got[0].Name != "eth0" || got[1].Name != "Ethernet 2" {
		t.Errorf("unexpected interfaces: %+v", got)
	}
}

func TestNetworkCollector_ConfiguredInterfaces(t *testing.T) {
	c, _ := newTestNetworkCollector([]net.IOCountersStat{
		{Name: "eth0"},
		{Name: "eth1"},
		{Name: "docker0"},
	})
	if err := c.Configure(settings.CollectorConfig{Enabled: true, Interfaces: []string{"ETH1", "docker0"}}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	got := interfaces(t, m)
	if len(got) != 2 || got[0].Name != "eth1" || got[1].Name != "docker0" {
		t.Errorf("unexpected interfaces: %+v", got)
	}
}

func TestNetworkCollector_CountersError(t *testing.T) {
	c := NewNetworkCollector()
	c.counters = func(context.Context) ([]net.IOCountersStat, error) {
		return nil, errors.New("no counters")
	}
	if _, err := c.Collect(context.Background()); err == nil {
		t.Error("expected error")
	}
}
