package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// PanicError is a recovered panic from a cycle body.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("cycle panicked: %v", e.Value)
}

// causes returns the direct causes of a multi-cause container, or nil if err is not one.
func causes(err error) []error {
	if merr, ok := err.(*multierror.Error); ok {
		return merr.WrappedErrors()
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return nil
}

// Unwrap reduces a container holding exactly one cause to that cause.
// Anything else is returned unchanged.
func Unwrap(err error) error {
	if cs := causes(err); len(cs) == 1 && cs[0] != nil {
		return cs[0]
	}
	return err
}

// IsCancellation reports whether err only carries cooperative cancellation.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if cs := causes(err); len(cs) > 0 {
		for _, c := range cs {
			if !IsCancellation(c) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (w *Worker) logCycleError(err error, duration time.Duration) {
	if IsCancellation(err) {
		w.log.Info().
			Dur("duration", duration).
			Msg("Cycle cancelled")
		return
	}

	err = Unwrap(err)
	ev := w.log.Error().
		Err(err).
		Uint64("cycle", w.Cycles()+1).
		Dur("duration", duration)
	if cs := causes(err); len(cs) > 1 {
		ev = ev.Int("causes", len(cs))
	}
	var perr *PanicError
	if errors.As(err, &perr) {
		ev = ev.Str("stack", string(perr.Stack))
	}
	ev.Msg("Cycle failed")
}
