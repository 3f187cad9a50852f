// Package host presents one lifecycle contract to the worker whether the
// process runs in a terminal or under a service manager.
package host

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"cycleagent/internal/service"
)

// ErrPrecondition is matched by every *PreconditionError.
var ErrPrecondition = errors.New("host precondition failed")

// PreconditionError reports a missing collaborator.
type PreconditionError struct {
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("host: %s is required", e.Field)
}

// Is reports whether target is ErrPrecondition.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// Worker is the lifecycle surface of the background job.
type Worker interface {
	Start() error
	Stop() error
	Initialized() <-chan struct{}
	Done() <-chan struct{}
	Err() error
}

// Settings is the part of the settings store the host touches.
type Settings interface {
	Reload() error
	Save(force bool) error
	InstrumentationKey() string
}

// Config wires the host. Worker, Settings and Logger are required.
type Config struct {
	Worker   Worker
	Settings Settings
	Logger   *zerolog.Logger

	// Interactive reports whether to use the terminal front end.
	// Defaults to IsTerminal.
	Interactive func() bool

	// Prepared, when set, runs after settings were loaded and saved and
	// before dispatch.
	Prepared func()

	// Parse handles command-line arguments in interactive mode and returns
	// the process exit code. The worker is not started when args are present.
	Parse func(args []string) int

	// Keys opens the key source for interactive mode. Defaults to OpenTTY.
	Keys func() (KeySource, error)

	// Signals, when set, is watched for interrupts in interactive mode.
	// Defaults to os.Interrupt notifications.
	Signals <-chan os.Signal

	// Service is the managed-mode entry point. Defaults to service.NewRunner.
	Service service.Runner

	// HostExitTimeout bounds the wait for the service runner to return
	// after the worker is done.
	HostExitTimeout time.Duration
}

// DefaultHostExitTimeout is used when Config.HostExitTimeout is zero.
const DefaultHostExitTimeout = 30 * time.Second

// IsTerminal reports whether stdin is attached to an interactive terminal.
func IsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run validates the configuration, prepares settings, then dispatches to the
// interactive or managed front end. It returns the process exit code; a
// non-nil error is fatal for the caller.
func Run(args []string, cfg Config) (int, error) {
	if err := cfg.validate(); err != nil {
		return 1, err
	}
	log := cfg.Logger.With().Str("component", "host").Logger()

	if err := cfg.Settings.Reload(); err != nil {
		return 1, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := cfg.Settings.Save(true); err != nil {
		log.Warn().Err(err).Msg("Failed to save settings")
	}

	if key := cfg.Settings.InstrumentationKey(); key != "" {
		log.Info().Str("instrumentation_key", MaskKey(key)).Msg("Instrumentation key configured")
	} else {
		log.Warn().Msg("No instrumentation key configured")
	}
	if cfg.Prepared != nil {
		cfg.Prepared()
	}

	interactive := cfg.Interactive
	if interactive == nil {
		interactive = IsTerminal
	}

	if interactive() {
		log.Debug().Msg("Terminal attached, running interactively")
		return runInteractive(args, cfg, log)
	}
	log.Debug().Msg("No terminal attached, running as managed service")
	return runManaged(cfg, log)
}

func (c *Config) validate() error {
	switch {
	case c.Worker == nil:
		return &PreconditionError{Field: "worker"}
	case c.Settings == nil:
		return &PreconditionError{Field: "settings"}
	case c.Logger == nil:
		return &PreconditionError{Field: "logger"}
	}
	return nil
}

// MaskKey keeps the first four characters of a secret.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
