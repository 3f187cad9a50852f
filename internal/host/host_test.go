package host

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cycleagent/internal/service"
)

// fakeWorker records lifecycle calls. Start closes initialized; Stop closes done.
type fakeWorker struct {
	mu          sync.Mutex
	calls       []string
	startErr    error
	err         error
	initialized chan struct{}
	done        chan struct{}
	initOnce    sync.Once
	doneOnce    sync.Once
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{
		initialized: make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (w *fakeWorker) record(c string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, c)
}

func (w *fakeWorker) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWorker) count(c string) int {
	n := 0
	for _, x := range w.Calls() {
		if x == c {
			n++
		}
	}
	return n
}

func (w *fakeWorker) Start() error {
	w.record("start")
	if w.startErr != nil {
		return w.startErr
	}
	w.initOnce.Do(func() { close(w.initialized) })
	return nil
}

func (w *fakeWorker) Stop() error {
	w.record("stop")
	w.finish()
	return nil
}

func (w *fakeWorker) finish()                      { w.doneOnce.Do(func() { close(w.done) }) }
func (w *fakeWorker) Initialized() <-chan struct{} { return w.initialized }
func (w *fakeWorker) Done() <-chan struct{}        { return w.done }
func (w *fakeWorker) Err() error                   { return w.err }

type fakeSettings struct {
	reloads   int
	saves     []bool
	key       string
	reloadErr error
	saveErr   error
}

func (s *fakeSettings) Reload() error { s.reloads++; return s.reloadErr }
func (s *fakeSettings) Save(force bool) error {
	s.saves = append(s.saves, force)
	return s.saveErr
}
func (s *fakeSettings) InstrumentationKey() string { return s.key }

// scriptedKeys replays runes, then blocks until closed.
type scriptedKeys struct {
	runes  chan rune
	closed chan struct{}
	once   sync.Once
}

func newScriptedKeys(rs ...rune) *scriptedKeys {
	k := &scriptedKeys{runes: make(chan rune, len(rs)+1), closed: make(chan struct{})}
	for _, r := range rs {
		k.runes <- r
	}
	return k
}

func (k *scriptedKeys) ReadKey() (rune, error) {
	select {
	case r := <-k.runes:
		return r, nil
	case <-k.closed:
		return 0, io.EOF
	}
}

func (k *scriptedKeys) Close() error {
	k.once.Do(func() { close(k.closed) })
	return nil
}

type runnerFunc func(h service.Handle) error

func (f runnerFunc) Run(h service.Handle) error { return f(h) }

func testConfig(w Worker, s Settings, buf io.Writer) Config {
	log := zerolog.New(buf)
	return Config{
		Worker:          w,
		Settings:        s,
		Logger:          &log,
		Signals:         make(chan os.Signal),
		HostExitTimeout: time.Second,
	}
}

func interactive() bool { return true }
func managed() bool     { return false }

func runWithTimeout(t *testing.T, args []string, cfg Config) (int, error) {
	t.Helper()
	type result struct {
		code int
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		code, err := Run(args, cfg)
		ch <- result{code, err}
	}()
	select {
	case r := <-ch:
		return r.code, r.err
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
		return 0, nil
	}
}

// --- Preconditions ---

func TestRun_Preconditions(t *testing.T) {
	log := zerolog.Nop()
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"no worker", Config{Settings: &fakeSettings{}, Logger: &log}, "worker"},
		{"no settings", Config{Worker: newFakeWorker(), Logger: &log}, "settings"},
		{"no logger", Config{Worker: newFakeWorker(), Settings: &fakeSettings{}}, "logger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := Run(nil, tt.cfg)
			if code != 1 {
				t.Errorf("expected exit code 1, got %d", code)
			}
			if !errors.Is(err, ErrPrecondition) {
				t.Fatalf("expected ErrPrecondition, got %v", err)
			}
			var pe *PreconditionError
			if !errors.As(err, &pe) || pe.Field != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestRun_PreparesSettingsBeforeDispatch(t *testing.T) {
	var buf bytes.Buffer
	s := &fakeSettings{key: "abcd-1234-secret"}
	cfg := testConfig(newFakeWorker(), s, &buf)
	cfg.Interactive = interactive
	cfg.Parse = func([]string) int { return 0 }

	if _, err := Run([]string{"show"}, cfg); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if s.reloads != 1 {
		t.Errorf("expected one reload, got %d", s.reloads)
	}
	if len(s.saves) != 1 || !s.saves[0] {
		t.Errorf("expected one forced save, got %v", s.saves)
	}
	if !strings.Contains(buf.String(), "abcd****") {
		t.Errorf("expected masked key in log, got %s", buf.String())
	}
	if strings.Contains(buf.String(), "secret") {
		t.Error("instrumentation key leaked into log")
	}
}

func TestRun_PreparedRunsAfterForcedSave(t *testing.T) {
	s := &fakeSettings{}
	var savesSeen []bool
	cfg := testConfig(newFakeWorker(), s, io.Discard)
	cfg.Interactive = interactive
	cfg.Parse = func([]string) int { return 0 }
	cfg.Prepared = func() { savesSeen = append([]bool(nil), s.saves...) }

	if _, err := Run([]string{"show"}, cfg); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(savesSeen) != 1 || !savesSeen[0] {
		t.Errorf("Prepared ran before the forced save: saves seen %v", savesSeen)
	}
}

func TestRun_ReloadFailureIsFatal(t *testing.T) {
	w := newFakeWorker()
	cfg := testConfig(w, &fakeSettings{reloadErr: errors.New("bad json")}, io.Discard)
	cfg.Interactive = interactive

	code, err := Run(nil, cfg)
	if code != 1 || err == nil {
		t.Fatalf("expected fatal reload failure, got %d %v", code, err)
	}
	if len(w.Calls()) != 0 {
		t.Errorf("worker touched before settings loaded: %v", w.Calls())
	}
}

func TestRun_SaveFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(newFakeWorker(), &fakeSettings{saveErr: errors.New("read-only")}, io.Discard)
	cfg.Interactive = interactive
	cfg.Parse = func([]string) int { return 0 }

	if code, err := Run([]string{"show"}, cfg); code != 0 || err != nil {
		t.Errorf("expected success despite save failure, got %d %v", code, err)
	}
}

// --- Interactive ---

func TestInteractive_ArgsDelegateToParser(t *testing.T) {
	for _, want := range []int{0, 1, 2} {
		w := newFakeWorker()
		cfg := testConfig(w, &fakeSettings{}, io.Discard)
		cfg.Interactive = interactive
		var got []string
		cfg.Parse = func(args []string) int { got = args; return want }
		cfg.Keys = func() (KeySource, error) {
			t.Fatal("keys opened in one-shot mode")
			return nil, nil
		}

		code, err := Run([]string{"--interval", "30s"}, cfg)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if code != want {
			t.Errorf("expected parser exit code %d verbatim, got %d", want, code)
		}
		if len(got) != 2 || got[0] != "--interval" {
			t.Errorf("parser got %v", got)
		}
		if n := len(w.Calls()); n != 0 {
			t.Errorf("worker must not be touched in one-shot mode, got %v", w.Calls())
		}
	}
}

func TestInteractive_StopOnlyAfterCancelKey(t *testing.T) {
	for _, cancel := range []rune{KeyCtrlC, KeyCtrlQ} {
		w := newFakeWorker()
		keys := newScriptedKeys('a', 'q', '\r')
		cfg := testConfig(w, &fakeSettings{}, io.Discard)
		cfg.Interactive = interactive
		cfg.Keys = func() (KeySource, error) { return keys, nil }

		result := make(chan int, 1)
		go func() {
			code, _ := Run(nil, cfg)
			result <- code
		}()

		<-w.Initialized()
		// Ordinary keys do not stop the worker.
		time.Sleep(50 * time.Millisecond)
		if w.count("stop") != 0 {
			t.Fatalf("worker stopped before a cancel key: %v", w.Calls())
		}

		keys.runes <- cancel
		select {
		case code := <-result:
			if code != 0 {
				t.Errorf("expected exit code 0, got %d", code)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("interactive host did not return after cancel key")
		}

		if w.count("start") != 1 || w.count("stop") != 1 {
			t.Errorf("expected exactly one start and one stop, got %v", w.Calls())
		}
		calls := w.Calls()
		if calls[0] != "start" || calls[len(calls)-1] != "stop" {
			t.Errorf("unexpected call order %v", calls)
		}
	}
}

func TestInteractive_KeySourceClosedActsAsCancel(t *testing.T) {
	w := newFakeWorker()
	keys := newScriptedKeys()
	keys.Close()

	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = interactive
	cfg.Keys = func() (KeySource, error) { return keys, nil }

	code, err := runWithTimeout(t, nil, cfg)
	if code != 0 || err != nil {
		t.Errorf("expected clean exit, got %d %v", code, err)
	}
	if w.count("stop") != 1 {
		t.Errorf("expected one stop, got %v", w.Calls())
	}
}

func TestInteractive_InterruptSignalStops(t *testing.T) {
	w := newFakeWorker()
	sig := make(chan os.Signal, 1)
	sig <- os.Interrupt

	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = interactive
	cfg.Signals = sig
	cfg.Keys = func() (KeySource, error) { return newScriptedKeys(), nil }

	if code, err := runWithTimeout(t, nil, cfg); code != 0 || err != nil {
		t.Errorf("expected clean exit, got %d %v", code, err)
	}
	if w.count("start") != 1 || w.count("stop") != 1 {
		t.Errorf("expected one start and one stop, got %v", w.Calls())
	}
}

func TestInteractive_WorkerFailureReported(t *testing.T) {
	w := newFakeWorker()
	w.err = errors.New("failed to reload settings")

	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = interactive
	cfg.Keys = func() (KeySource, error) { return newScriptedKeys(), nil }

	go func() {
		<-w.Initialized()
		w.finish()
	}()

	code, err := runWithTimeout(t, nil, cfg)
	if code != 1 || !errors.Is(err, w.err) {
		t.Errorf("expected worker failure surfaced, got %d %v", code, err)
	}
}

func TestInteractive_KeyOpenFailureBeforeStart(t *testing.T) {
	w := newFakeWorker()
	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = interactive
	cfg.Keys = func() (KeySource, error) { return nil, errors.New("no tty") }

	code, err := Run(nil, cfg)
	if code != 1 || err == nil {
		t.Fatalf("expected startup failure, got %d %v", code, err)
	}
	if len(w.Calls()) != 0 {
		t.Errorf("worker started despite startup failure: %v", w.Calls())
	}
}

// --- Managed ---

func TestManaged_AwaitsInitializedThenDone(t *testing.T) {
	w := newFakeWorker()
	release := make(chan struct{})

	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = managed
	cfg.Service = runnerFunc(func(h service.Handle) error {
		if err := h.Start(); err != nil {
			return err
		}
		<-release
		return h.Stop()
	})

	result := make(chan int, 1)
	go func() {
		code, _ := Run(nil, cfg)
		result <- code
	}()

	<-w.Initialized()
	select {
	case <-result:
		t.Fatal("managed host returned before the worker was done")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case code := <-result:
		if code != 0 {
			t.Errorf("expected exit code 0, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("managed host did not return after the worker finished")
	}
}

func TestManaged_HostErrorBeforeInitialization(t *testing.T) {
	w := newFakeWorker()
	hostErr := errors.New("StartServiceCtrlDispatcher failed")

	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = managed
	cfg.Service = runnerFunc(func(service.Handle) error { return hostErr })

	code, err := runWithTimeout(t, nil, cfg)
	if code != 1 || !errors.Is(err, hostErr) {
		t.Errorf("expected host error observable, got %d %v", code, err)
	}
}

func TestManaged_HostErrorAfterInitialization(t *testing.T) {
	w := newFakeWorker()
	hostErr := errors.New("service host crashed")

	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = managed
	cfg.Service = runnerFunc(func(h service.Handle) error {
		_ = h.Start()
		return hostErr
	})

	code, err := runWithTimeout(t, nil, cfg)
	if code != 1 || !errors.Is(err, hostErr) {
		t.Errorf("expected host error observable, got %d %v", code, err)
	}
}

func TestManaged_WorkerFailureReported(t *testing.T) {
	w := newFakeWorker()
	w.err = errors.New("failed to reload settings")

	cfg := testConfig(w, &fakeSettings{}, io.Discard)
	cfg.Interactive = managed
	cfg.Service = runnerFunc(func(h service.Handle) error {
		_ = h.Start()
		w.finish()
		return nil
	})

	code, err := runWithTimeout(t, nil, cfg)
	if code != 1 || !errors.Is(err, w.err) {
		t.Errorf("expected worker failure surfaced, got %d %v", code, err)
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":             "****",
		"abc":          "****",
		"abcd":         "****",
		"abcde":        "abcd****",
		"0123-4567-89": "0123****",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
