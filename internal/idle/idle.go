// Package idle computes the idle remainder of a fixed-length cycle window and waits it out.
package idle

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Sleeper waits for a duration unless ctx is cancelled first.
type Sleeper interface {
	// Sleep returns ctx.Err() if ctx is done before d elapses.
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on a clock.Clock timer.
type ClockSleeper struct {
	Clock clock.Clock
}

// Sleep implements Sleeper.
func (s ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}

	t := clk.Timer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Timer is one cycle window: an interval measured from a fixed start instant.
type Timer struct {
	interval time.Duration
	start    time.Time
}

// Start opens a window of the given interval beginning now.
func Start(clk clock.Clock, interval time.Duration) *Timer {
	return &Timer{
		interval: interval,
		start:    clk.Now(),
	}
}

// Interval returns the window length.
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Started returns the window start.
func (t *Timer) Started() time.Time {
	return t.start
}

// Elapsed returns the time spent in the window at now.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	return now.Sub(t.start)
}

// Remaining returns interval - elapsed. The value is negative once the window has overrun.
func (t *Timer) Remaining(now time.Time) time.Duration {
	return t.interval - t.Elapsed(now)
}

// Status describes the remaining time for logging.
func (t *Timer) Status(now time.Time) string {
	remaining := t.Remaining(now)
	if remaining <= 0 {
		return "starting immediately"
	}
	return fmt.Sprintf("next run in %d seconds", int64(remaining/time.Second))
}

// Report logs Status at info level.
func (t *Timer) Report(log zerolog.Logger, now time.Time) {
	remaining := t.Remaining(now)
	if remaining < 0 {
		remaining = 0
	}
	log.Info().
		Dur("elapsed", t.Elapsed(now)).
		Dur("remaining", remaining).
		Msg(t.Status(now))
}

// Delay sleeps for the remainder of the window. It does not call s at all
// when the window has already been used up.
func (t *Timer) Delay(ctx context.Context, now time.Time, s Sleeper) error {
	remaining := t.Remaining(now)
	if remaining <= 0 {
		return nil
	}
	return s.Sleep(ctx, remaining)
}
