package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFile is the file name written by WriteStartupErrorFile.
const StartupErrorFile = "startup-error.log"

// WriteStartupErrorFile records a fatal error next to the logs, overwriting
// any previous one, and returns the file path. It is used when logging may
// not be initialized yet.
func WriteStartupErrorFile(logDir string, err error) (string, error) {
	if mkErr := os.MkdirAll(logDir, 0755); mkErr != nil {
		return "", mkErr
	}

	path := filepath.Join(logDir, StartupErrorFile)
	f, ferr := os.Create(path)
	if ferr != nil {
		return "", ferr
	}
	defer f.Close()

	ts := time.Now().Format("2006-01-02 15:04:05")
	if _, werr := fmt.Fprintf(f, "[%s] %s FATAL\n%v\n", ts, Name, err); werr != nil {
		return "", werr
	}
	return path, nil
}

// ReportFatal writes the startup error file and the platform event log.
func ReportFatal(logDir string, err error) {
	_, _ = WriteStartupErrorFile(logDir, err)
	ReportStartupError(Name, err)
}
