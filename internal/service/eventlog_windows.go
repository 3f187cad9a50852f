//go:build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

const eventIDFatal = 1

// ReportStartupError records err in the Application event log under source.
// Failures to reach the event log are ignored.
func ReportStartupError(source string, err error) {
	if err == nil {
		return
	}
	// Fails harmlessly when the source is already registered.
	_ = eventlog.InstallAsEventCreate(source, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, openErr := eventlog.Open(source)
	if openErr != nil {
		return
	}
	defer elog.Close()

	_ = elog.Error(eventIDFatal, fmt.Sprintf("%s terminated: %v", source, err))
}
