package collector

import "time"

// MetricData is the common wrapper for all collected metrics.
type MetricData struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	AgentID   string            `json:"agent_id"`
	Hostname  string            `json:"hostname"`
	Tags      map[string]string `json:"tags,omitempty"`
	Data      interface{}       `json:"data"`
}

// CPUData contains overall CPU usage metrics.
type CPUData struct {
	UsagePercent float64   `json:"usage_percent"`
	User         float64   `json:"user"`
	System       float64   `json:"system"`
	Idle         float64   `json:"idle"`
	IOWait       float64   `json:"iowait,omitempty"`
	CoreCount    int       `json:"core_count"`
	PerCore      []float64 `json:"per_core,omitempty"`
}

// MemoryData contains memory usage metrics.
type MemoryData struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
	SwapTotalBytes uint64  `json:"swap_total_bytes"`
	SwapUsedBytes  uint64  `json:"swap_used_bytes"`
	SwapPercent    float64 `json:"swap_percent"`
}

// DiskData contains disk usage metrics.
type DiskData struct {
	Partitions []DiskPartition `json:"partitions"`
}

// DiskPartition contains metrics for a single disk partition.
type DiskPartition struct {
	Device       string  `json:"device"`
	Mountpoint   string  `json:"mountpoint"`
	FSType       string  `json:"fs_type"`
	TotalBytes   uint64  `json:"total_bytes"`
	UsedBytes    uint64  `json:"used_bytes"`
	FreeBytes    uint64  `json:"free_bytes"`
	UsagePercent float64 `json:"usage_percent"`
	ReadBytes    uint64  `json:"read_bytes,omitempty"`
	WriteBytes   uint64  `json:"write_bytes,omitempty"`
}

// UptimeData contains boot time and uptime.
type UptimeData struct {
	BootTimeUnix  int64   `json:"boot_time_unix"`
	BootTimeStr   string  `json:"boot_time"`
	UptimeMinutes float64 `json:"uptime_minutes"`
}

// OSData describes the operating system.
type OSData struct {
	Caption       string `json:"caption"`
	Platform      string `json:"platform"`
	Version       string `json:"version"`
	Build         string `json:"build,omitempty"`
	Architecture  string `json:"architecture"`
	KernelVersion string `json:"kernel_version,omitempty"`
}

// NetworkData contains per-interface traffic counters.
type NetworkData struct {
	Interfaces []NetworkInterface `json:"interfaces"`
}

// NetworkInterface contains counters and rates for one interface. Rates are
// zero on the first sample and after a counter reset.
type NetworkInterface struct {
	Name          string  `json:"name"`
	BytesSent     uint64  `json:"bytes_sent"`
	BytesRecv     uint64  `json:"bytes_recv"`
	PacketsSent   uint64  `json:"packets_sent"`
	PacketsRecv   uint64  `json:"packets_recv"`
	ErrorsIn      uint64  `json:"errors_in"`
	ErrorsOut     uint64  `json:"errors_out"`
	BytesSentRate float64 `json:"bytes_sent_rate"`
	BytesRecvRate float64 `json:"bytes_recv_rate"`
}

// ProcessData reports each watched process name.
type ProcessData struct {
	Processes []ProcessStatus `json:"processes"`
}

// ProcessStatus aggregates every running instance of one watched name.
type ProcessStatus struct {
	Name       string  `json:"name"`
	Running    bool    `json:"running"`
	Instances  int     `json:"instances"`
	PIDs       []int32 `json:"pids,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}
