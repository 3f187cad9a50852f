//go:build !windows

package service

// ReportStartupError does nothing outside Windows; the startup error file is
// the only record there.
func ReportStartupError(source string, err error) {}
