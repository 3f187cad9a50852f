//go:build windows

package collector

import (
	"context"
	"fmt"

	"github.com/yusufpapurcu/wmi"
)

type win32OperatingSystem struct {
	Caption        string
	Version        string
	BuildNumber    string
	OSArchitecture string
}

// readOSInfo queries Win32_OperatingSystem. WMI calls cannot be cancelled,
// so the query runs on its own goroutine and ctx bounds the wait.
func readOSInfo(ctx context.Context) (OSData, error) {
	type result struct {
		rows []win32OperatingSystem
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		var rows []win32OperatingSystem
		err := wmi.Query("SELECT Caption, Version, BuildNumber, OSArchitecture FROM Win32_OperatingSystem", &rows)
		ch <- result{rows: rows, err: err}
	}()

	select {
	case <-ctx.Done():
		return OSData{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return OSData{}, fmt.Errorf("WMI Win32_OperatingSystem query failed: %w", r.err)
		}
		if len(r.rows) == 0 {
			return OSData{}, fmt.Errorf("WMI Win32_OperatingSystem returned no rows")
		}
		info := r.rows[0]
		return OSData{
			Caption:      info.Caption,
			Platform:     "windows",
			Version:      info.Version,
			Build:        info.BuildNumber,
			Architecture: info.OSArchitecture,
		}, nil
	}
}
