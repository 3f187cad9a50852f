//go:build windows

package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows/svc"

	"cycleagent/internal/logger"
)

// WindowsRunner implements svc.Handler and hosts the worker under the SCM.
type WindowsRunner struct {
	name string
	h    Handle
	log  zerolog.Logger
}

// NewRunner creates the platform runner.
func NewRunner(name string) Runner {
	return &WindowsRunner{
		name: name,
		log:  logger.WithComponent("service-host"),
	}
}

// Run implements Runner. It blocks in svc.Run until the SCM stops the service.
func (r *WindowsRunner) Run(h Handle) error {
	r.h = h
	if err := svc.Run(r.name, r); err != nil {
		return fmt.Errorf("service control dispatcher failed: %w", err)
	}
	return h.Err()
}

// Execute implements svc.Handler.
func (r *WindowsRunner) Execute(args []string, req <-chan svc.ChangeRequest, changes chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	if err := r.h.Start(); err != nil {
		r.log.Error().Err(err).Msg("Failed to start worker")
		changes <- svc.Status{State: svc.Stopped}
		return true, 1
	}

	changes <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
	r.log.Info().Str("service", r.name).Msg("Windows service started")

	for {
		select {
		case c := <-req:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
				// Respond twice as per documentation
				time.Sleep(100 * time.Millisecond)
				changes <- c.CurrentStatus

			case svc.Stop, svc.Shutdown:
				r.log.Info().Msg("Received stop signal from Windows service control")
				changes <- svc.Status{State: svc.StopPending}
				if err := r.h.Stop(); err != nil {
					r.log.Warn().Err(err).Msg("Worker did not stop cleanly")
				}
				changes <- svc.Status{State: svc.Stopped}
				return false, 0

			default:
				r.log.Warn().Int("cmd", int(c.Cmd)).Msg("Unexpected service control command")
			}

		case <-r.h.Done():
			changes <- svc.Status{State: svc.Stopped}
			if err := r.h.Err(); err != nil {
				r.log.Error().Err(err).Msg("Worker exited with error")
				return true, 1
			}
			return false, 0
		}
	}
}
