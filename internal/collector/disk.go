package collector

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"cycleagent/internal/settings"
)

var pseudoFS = map[string]bool{
	"sysfs": true, "proc": true, "devtmpfs": true, "devpts": true, "tmpfs": true,
	"securityfs": true, "cgroup": true, "cgroup2": true, "pstore": true, "debugfs": true,
	"hugetlbfs": true, "mqueue": true, "fusectl": true, "configfs": true, "autofs": true,
	"binfmt_misc": true, "fuse.gvfsd-fuse": true, "overlay": true, "squashfs": true,
	"cdfs": true, "udf": true,
}

// DiskCollector collects disk usage metrics.
type DiskCollector struct {
	BaseCollector
	disks []string // empty means all
}

// NewDiskCollector creates a new disk collector.
func NewDiskCollector() *DiskCollector {
	return &DiskCollector{
		BaseCollector: NewBaseCollector("disk"),
	}
}

// Configure applies the enable flag and the disk filter.
func (c *DiskCollector) Configure(cfg settings.CollectorConfig) error {
	c.SetEnabled(cfg.Enabled)
	c.disks = cfg.Disks
	return nil
}

// Collect gathers disk metrics.
func (c *DiskCollector) Collect(ctx context.Context) (*MetricData, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	// I/O stats may not be available
	ioCounters, _ := disk.IOCountersWithContext(ctx)

	var result []DiskPartition
	for _, p := range partitions {
		if len(c.disks) > 0 && !c.shouldInclude(p.Device, p.Mountpoint) {
			continue
		}
		if c.isPseudoFS(p.Fstype) {
			continue
		}

		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		// Empty CD-ROM drives report zero total bytes
		if c.shouldSkipPartition(usage.Total) {
			continue
		}

		partition := DiskPartition{
			Device:       p.Device,
			Mountpoint:   p.Mountpoint,
			FSType:       p.Fstype,
			TotalBytes:   usage.Total,
			UsedBytes:    usage.Used,
			FreeBytes:    usage.Free,
			UsagePercent: usage.UsedPercent,
		}
		if io, ok := ioCounters[c.getDeviceName(p.Device)]; ok {
			partition.ReadBytes = io.ReadBytes
			partition.WriteBytes = io.WriteBytes
		}

		result = append(result, partition)
	}

	return &MetricData{
		Type:      c.Name(),
		Timestamp: time.Now().UTC(),
		Data:      DiskData{Partitions: result},
	}, nil
}

func (c *DiskCollector) shouldInclude(device, mountpoint string) bool {
	for _, d := range c.disks {
		if strings.EqualFold(d, device) || strings.EqualFold(d, mountpoint) {
			return true
		}
	}
	return false
}

func (c *DiskCollector) isPseudoFS(fstype string) bool {
	return pseudoFS[strings.ToLower(fstype)]
}

func (c *DiskCollector) shouldSkipPartition(totalBytes uint64) bool {
	return totalBytes == 0
}

// getDeviceName strips the path, e.g. /dev/sda1 -> sda1.
func (c *DiskCollector) getDeviceName(device string) string {
	parts := strings.Split(device, "/")
	return parts[len(parts)-1]
}
