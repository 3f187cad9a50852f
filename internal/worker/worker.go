// Package worker drives a single background job through repeated, time-boxed cycles.
//
// A Worker owns one goroutine. Each cycle reloads settings, runs the Cycler,
// reclaims memory and then idles out the rest of the configured interval.
// Stop cancels the worker context and waits a bounded time for the goroutine
// to exit.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"cycleagent/internal/idle"
	"cycleagent/internal/logger"
)

// DefaultStopTimeout bounds how long Stop waits for the loop to exit.
const DefaultStopTimeout = 10 * time.Second

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("worker already started")

	// ErrStopTimeout is returned by Stop when the loop did not exit in time.
	ErrStopTimeout = errors.New("worker did not stop within timeout")
)

// Cycler performs one unit of work. It should return promptly once ctx is done.
type Cycler interface {
	RunCycle(ctx context.Context) error
}

// CycleFunc adapts a function to Cycler.
type CycleFunc func(ctx context.Context) error

// RunCycle implements Cycler.
func (f CycleFunc) RunCycle(ctx context.Context) error {
	return f(ctx)
}

// Settings is the read side of the configuration the loop needs each cycle.
type Settings interface {
	Reload() error
	Interval() time.Duration
	PostCyclePause() time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock sets the clock used for cycle windows and the default sleeper.
func WithClock(clk clock.Clock) Option {
	return func(w *Worker) { w.clock = clk }
}

// WithSleeper replaces the cancellable sleeper.
func WithSleeper(s idle.Sleeper) Option {
	return func(w *Worker) { w.sleeper = s }
}

// WithReclaimer replaces the memory reclamation pass.
func WithReclaimer(fn func()) Option {
	return func(w *Worker) { w.reclaim = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Worker) { w.log = log }
}

// WithStopTimeout sets the bound used by Stop.
func WithStopTimeout(d time.Duration) Option {
	return func(w *Worker) { w.stopTimeout = d }
}

// Worker runs a Cycler on one dedicated goroutine.
type Worker struct {
	cycler      Cycler
	settings    Settings
	clock       clock.Clock
	sleeper     idle.Sleeper
	reclaim     func()
	log         zerolog.Logger
	stopTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc

	state  atomic.Int32
	cycles atomic.Uint64

	initialized chan struct{}
	initOnce    sync.Once
	done        chan struct{}
	doneOnce    sync.Once

	errMu sync.Mutex
	err   error
}

// New creates a worker in the Created state.
func New(c Cycler, s Settings, opts ...Option) *Worker {
	w := &Worker{
		cycler:      c,
		settings:    s,
		clock:       clock.New(),
		reclaim:     Reclaim,
		log:         logger.WithComponent("worker"),
		stopTimeout: DefaultStopTimeout,
		initialized: make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	if w.sleeper == nil {
		w.sleeper = idle.ClockSleeper{Clock: w.clock}
	}
	return w
}

// Reclaim forces a collection and then returns freed memory to the OS.
func Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}

// Start spawns the loop goroutine and returns immediately.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.state.CompareAndSwap(int32(Created), int32(Started)) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go w.run(ctx)
	return nil
}

// Stop requests cancellation and waits up to the stop timeout for the loop to exit.
// On timeout the loop is left running and ErrStopTimeout is returned.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.state.CompareAndSwap(int32(Created), int32(Stopped)) {
		w.mu.Unlock()
		w.closeDone()
		return nil
	}
	cancel := w.cancel
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	w.setState(Stopping)
	cancel()

	t := w.clock.Timer(w.stopTimeout)
	defer t.Stop()

	select {
	case <-w.done:
		return nil
	case <-t.C:
		w.log.Warn().
			Dur("timeout", w.stopTimeout).
			Msg("Worker did not stop in time, abandoning wait")
		return ErrStopTimeout
	}
}

// Initialized is closed once the loop goroutine has begun running.
func (w *Worker) Initialized() <-chan struct{} {
	return w.initialized
}

// Done is closed once the loop goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the failure that terminated the loop, or nil when it stopped on request.
func (w *Worker) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Cycles returns the number of cycles that have finished.
func (w *Worker) Cycles() uint64 {
	return w.cycles.Load()
}

func (w *Worker) closeDone() {
	w.doneOnce.Do(func() { close(w.done) })
}

func (w *Worker) setErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	w.err = err
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in worker loop: %v", r)
			w.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Worker loop panicked")
			w.setErr(err)
		}
		w.state.Store(int32(Stopped))
		w.closeDone()
	}()

	w.initOnce.Do(func() { close(w.initialized) })
	w.log.Info().Msg("Worker started")

	if err := w.loop(ctx); err != nil {
		w.log.Error().Err(err).Msg("Worker loop failed")
		w.setErr(err)
		return
	}
	w.log.Info().Uint64("cycles", w.Cycles()).Msg("Worker stopped")
}

// loop returns nil when it exits on cancellation and an error for failures
// outside the cycle body.
func (w *Worker) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("Received stop, stopping")
			return nil
		}
		w.setState(Looping)

		if err := w.settings.Reload(); err != nil {
			return fmt.Errorf("failed to reload settings: %w", err)
		}
		pause := w.settings.PostCyclePause()
		timer := idle.Start(w.clock, w.settings.Interval())

		w.runCycle(ctx)
		w.cycles.Add(1)
		w.reclaim()

		w.setState(Idling)
		if pause > 0 && timer.Remaining(w.clock.Now()) > pause {
			if err := w.sleeper.Sleep(ctx, pause); err != nil {
				return w.stopping(err)
			}
			w.reclaim()
		}

		now := w.clock.Now()
		timer.Report(w.log, now)
		if err := timer.Delay(ctx, now, w.sleeper); err != nil {
			return w.stopping(err)
		}
	}
}

// stopping turns a wait error into the loop's exit value.
func (w *Worker) stopping(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		w.log.Info().Msg("Received stop, stopping")
		return nil
	}
	return fmt.Errorf("idle wait failed: %w", err)
}

func (w *Worker) setState(s State) {
	for {
		cur := w.state.Load()
		if State(cur) == Stopped || (State(cur) == Stopping && s != Stopping) {
			return
		}
		if w.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	start := w.clock.Now()
	err := w.safeRunCycle(ctx)
	duration := w.clock.Now().Sub(start)

	if err == nil {
		w.log.Debug().
			Uint64("cycle", w.Cycles()+1).
			Dur("duration", duration).
			Msg("Cycle completed")
		return
	}
	w.logCycleError(err, duration)
}

func (w *Worker) safeRunCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return w.cycler.RunCycle(ctx)
}
