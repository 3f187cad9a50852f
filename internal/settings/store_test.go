package settings

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStore_ReloadMissingFileKeepsDefaults(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	if err := st.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if st.Interval() != 75*time.Second {
		t.Errorf("expected default interval, got %v", st.Interval())
	}
}

func TestStore_ReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycleagent.json")
	writeFile(t, path, `{"Interval": "20s", "PostCyclePause": "1s"}`)

	st := NewStore(path)
	if err := st.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if st.Interval() != 20*time.Second || st.PostCyclePause() != time.Second {
		t.Fatalf("unexpected timing: %v / %v", st.Interval(), st.PostCyclePause())
	}

	writeFile(t, path, `{"Interval": "5s", "PostCyclePause": "1s"}`)
	if err := st.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if st.Interval() != 5*time.Second {
		t.Errorf("expected reloaded interval 5s, got %v", st.Interval())
	}
}

func TestStore_ReloadInvalidFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycleagent.json")
	writeFile(t, path, `{"Interval": "nope"}`)

	st := NewStore(path)
	if err := st.Reload(); err == nil {
		t.Fatal("expected error for invalid settings file")
	}
	if st.Interval() != 75*time.Second {
		t.Errorf("failed reload should keep current settings, got %v", st.Interval())
	}
}

func TestStore_SaveSkipsWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "cycleagent.json")
	st := NewStore(path)

	// A new store is dirty, so the first save writes.
	if err := st.Save(false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file written: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("clean store should not rewrite the file")
	}

	if err := st.Save(true); err != nil {
		t.Fatalf("forced Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("forced save should write the file: %v", err)
	}
}

func TestStore_UpdateThenSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycleagent.json")
	st := NewStore(path)

	err := st.Update(func(s *Settings) {
		s.Interval = 3 * time.Second
		s.InstrumentationKey = "k-1"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := st.Save(false); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other := NewStore(path)
	if err := other.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if other.Interval() != 3*time.Second || other.InstrumentationKey() != "k-1" {
		t.Errorf("saved settings not read back: %v %q", other.Interval(), other.InstrumentationKey())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "cycleagent.json"))

	err := st.Update(func(s *Settings) { s.Interval = -time.Second })
	if err == nil {
		t.Fatal("expected validation error")
	}
	if st.Interval() != 75*time.Second {
		t.Errorf("invalid update applied: %v", st.Interval())
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "cycleagent.json"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = st.Update(func(s *Settings) { s.Interval = time.Duration(n+1) * time.Second })
		}(i)
		go func() {
			defer wg.Done()
			_ = st.Interval()
			_ = st.Snapshot()
		}()
	}
	wg.Wait()

	if st.Interval() <= 0 {
		t.Errorf("unexpected interval after concurrent updates: %v", st.Interval())
	}
}

func TestDefaultPath_Env(t *testing.T) {
	t.Setenv(EnvPath, "/etc/cycleagent/custom.json")
	if got := DefaultPath(); got != "/etc/cycleagent/custom.json" {
		t.Errorf("expected env override, got %q", got)
	}

	t.Setenv(EnvPath, "")
	if got := DefaultPath(); !strings.HasSuffix(got, filepath.Join("conf", "cycleagent.json")) {
		t.Errorf("expected conf/cycleagent.json beside the executable, got %q", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
