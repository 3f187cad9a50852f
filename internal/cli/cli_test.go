package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cycleagent/internal/settings"
)

func newTestStore(t *testing.T) *settings.Store {
	t.Helper()
	return settings.NewStore(filepath.Join(t.TempDir(), "conf", "cycleagent.json"))
}

func TestExecute_UpdatesAndSaves(t *testing.T) {
	store := newTestStore(t)
	var out, errOut bytes.Buffer

	code := Execute([]string{
		"--interval", "30s",
		"--pause", "0s",
		"--instrumentation-key", "ikey-1",
		"--sender", "REDIS",
		"--log-level", "debug",
	}, store, "1.2.3", &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut.String())
	}

	reread := settings.NewStore(store.Path())
	if err := reread.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	s := reread.Snapshot()
	if s.Interval != 30*time.Second || s.PostCyclePause != 0 {
		t.Errorf("timing not saved: %v / %v", s.Interval, s.PostCyclePause)
	}
	if s.InstrumentationKey != "ikey-1" || s.Sender.Type != "redis" || s.Logging.Level != "debug" {
		t.Errorf("unexpected saved settings: key=%q sender=%q level=%q",
			s.InstrumentationKey, s.Sender.Type, s.Logging.Level)
	}
	if !strings.Contains(out.String(), "Settings saved") {
		t.Errorf("expected confirmation, got %q", out.String())
	}
}

func TestExecute_ParseFailures(t *testing.T) {
	tests := [][]string{
		{"--interval", "soon"},
		{"--interval", "0s"},
		{"--pause", "-1s"},
		{"--sender", "carrier-pigeon"},
		{"--log-level", "loud"},
		{"--no-such-flag"},
		{"unexpected-arg"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			store := newTestStore(t)
			var out, errOut bytes.Buffer

			if code := Execute(args, store, "dev", &out, &errOut); code != 1 {
				t.Errorf("expected exit 1, got %d", code)
			}
			if !strings.Contains(errOut.String(), "Error:") {
				t.Errorf("expected error output, got %q", errOut.String())
			}
		})
	}
}

func TestExecute_HelpExitsZero(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}} {
		var out, errOut bytes.Buffer
		if code := Execute(args, newTestStore(t), "dev", &out, &errOut); code != 0 {
			t.Errorf("%v: expected exit 0, got %d", args, code)
		}
		if !strings.Contains(out.String(), "--interval") {
			t.Errorf("%v: expected usage, got %q", args, out.String())
		}
	}
}

func TestExecute_ShowMasksSecrets(t *testing.T) {
	store := newTestStore(t)
	if err := store.Update(func(s *settings.Settings) {
		s.InstrumentationKey = "top-secret-key"
		s.Sender.Redis.Password = "hunter2"
	}); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	if code := Execute([]string{"show"}, store, "dev", &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut.String())
	}
	if strings.Contains(out.String(), "top-secret-key") || strings.Contains(out.String(), "hunter2") {
		t.Errorf("secrets printed: %s", out.String())
	}
	if !strings.Contains(out.String(), `"Interval": "1m15s"`) {
		t.Errorf("expected settings JSON, got %s", out.String())
	}
}

func TestExecute_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Execute([]string{"version"}, newTestStore(t), "1.2.3", &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(out.String()) != "cycleagent 1.2.3" {
		t.Errorf("unexpected version output %q", out.String())
	}
}
