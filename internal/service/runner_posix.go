//go:build !windows

package service

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"cycleagent/internal/logger"
)

// SignalRunner hosts the worker until SIGINT or SIGTERM and reports
// readiness to systemd when NOTIFY_SOCKET is set.
type SignalRunner struct {
	name    string
	signals <-chan os.Signal
	notify  func(state string) (bool, error)
	log     zerolog.Logger
}

// NewRunner creates the platform runner.
func NewRunner(name string) Runner {
	return &SignalRunner{
		name: name,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		log: logger.WithComponent("service-host"),
	}
}

// Run implements Runner.
func (r *SignalRunner) Run(h Handle) error {
	sigChan := r.signals
	if sigChan == nil {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(c)
		sigChan = c
	}

	if err := h.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	r.sdNotify(daemon.SdNotifyReady)
	r.log.Info().Str("service", r.name).Msg("Service started")

	select {
	case sig := <-sigChan:
		r.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		r.sdNotify(daemon.SdNotifyStopping)

		stopped := make(chan error, 1)
		go func() { stopped <- h.Stop() }()

		select {
		case err := <-stopped:
			// A requested stop ends the service either way.
			if err != nil {
				r.log.Warn().Err(err).Msg("Worker did not stop cleanly")
			}
			return nil
		case sig := <-sigChan:
			r.log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
			return nil
		}

	case <-h.Done():
		r.sdNotify(daemon.SdNotifyStopping)
		return h.Err()
	}
}

func (r *SignalRunner) sdNotify(state string) {
	if r.notify == nil {
		return
	}
	sent, err := r.notify(state)
	if err != nil {
		r.log.Warn().Err(err).Str("state", state).Msg("systemd notify failed")
		return
	}
	if sent {
		r.log.Debug().Str("state", state).Msg("Notified systemd")
	}
}
