package host

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cycleagent/internal/service"
)

// runManaged runs the service entry point on its own goroutine. Its result
// travels through errc and is observed at every stage of the wait.
func runManaged(cfg Config, log zerolog.Logger) (int, error) {
	runner := cfg.Service
	if runner == nil {
		runner = service.NewRunner(service.Name)
	}
	timeout := cfg.HostExitTimeout
	if timeout <= 0 {
		timeout = DefaultHostExitTimeout
	}

	errc := make(chan error, 1)
	go func() {
		errc <- runner.Run(cfg.Worker)
	}()

	select {
	case <-cfg.Worker.Initialized():
		log.Debug().Msg("Worker initialized")
	case err := <-errc:
		log.Warn().Msg("Service host returned before the worker started")
		return hostResult(cfg.Worker, err)
	}

	select {
	case <-cfg.Worker.Done():
		log.Debug().Msg("Worker done")
	case err := <-errc:
		log.Warn().Msg("Service host returned before the worker finished")
		return hostResult(cfg.Worker, err)
	}

	// Let the host finish reporting its own shutdown.
	select {
	case err := <-errc:
		return hostResult(cfg.Worker, err)
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Service host did not return after the worker finished")
		return hostResult(cfg.Worker, nil)
	}
}

func hostResult(w Worker, hostErr error) (int, error) {
	if hostErr != nil {
		return 1, fmt.Errorf("service host failed: %w", hostErr)
	}
	if err := w.Err(); err != nil {
		return 1, err
	}
	return 0, nil
}
