package settings

import (
	"os"
	"path/filepath"
)

// EnvPath names the environment variable that overrides the settings location.
const EnvPath = "CYCLEAGENT_SETTINGS"

// DefaultPath returns $CYCLEAGENT_SETTINGS, or conf/cycleagent.json beside the executable.
func DefaultPath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("conf", "cycleagent.json")
	}
	return filepath.Join(filepath.Dir(exe), "conf", "cycleagent.json")
}
