package collector

import (
	"testing"

	"cycleagent/internal/settings"
)

func TestIsPseudoFS(t *testing.T) {
	c := &DiskCollector{}

	for _, fs := range []string{"sysfs", "proc", "tmpfs", "cgroup2", "overlay", "cdfs", "CDFS", "UDF"} {
		if !c.isPseudoFS(fs) {
			t.Errorf("expected %q to be filtered out", fs)
		}
	}
	for _, fs := range []string{"ntfs", "NTFS", "ext4", "xfs", "btrfs", "exfat"} {
		if c.isPseudoFS(fs) {
			t.Errorf("expected %q to NOT be pseudo FS", fs)
		}
	}
}

func TestShouldSkipPartition(t *testing.T) {
	c := &DiskCollector{}

	if !c.shouldSkipPartition(0) {
		t.Error("expected partition with total=0 to be skipped")
	}
	if c.shouldSkipPartition(100 * 1024 * 1024 * 1024) {
		t.Error("expected partition with total > 0 to NOT be skipped")
	}
}

func TestDiskCollector_ConfigureFilter(t *testing.T) {
	c := NewDiskCollector()
	if err := c.Configure(settings.CollectorConfig{Enabled: true, Disks: []string{"C:", "/data"}}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	tests := []struct {
		device, mount string
		want          bool
	}{
		{"C:", "C:", true},
		{"c:", "c:", true},
		{"/dev/sdb1", "/data", true},
		{"/dev/sda1", "/", false},
	}
	for _, tt := range tests {
		if got := c.shouldInclude(tt.device, tt.mount); got != tt.want {
			t.Errorf("shouldInclude(%q, %q) = %v, want %v", tt.device, tt.mount, got, tt.want)
		}
	}
}

func TestGetDeviceName(t *testing.T) {
	c := &DiskCollector{}

	if got := c.getDeviceName("/dev/sda1"); got != "sda1" {
		t.Errorf("getDeviceName(/dev/sda1) = %q", got)
	}
	if got := c.getDeviceName("C:"); got != "C:" {
		t.Errorf("getDeviceName(C:) = %q", got)
	}
}
