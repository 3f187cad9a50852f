//go:build !windows

package collector

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

func readOSInfo(ctx context.Context) (OSData, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return OSData{}, err
	}
	caption := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	return OSData{
		Caption:       caption,
		Platform:      info.Platform,
		Version:       info.PlatformVersion,
		Architecture:  info.KernelArch,
		KernelVersion: info.KernelVersion,
	}, nil
}
