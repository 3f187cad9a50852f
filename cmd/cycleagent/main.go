// Package main is the entry point for the cycleagent application.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog"

	"cycleagent/internal/agent"
	"cycleagent/internal/cli"
	"cycleagent/internal/collector"
	"cycleagent/internal/host"
	"cycleagent/internal/logger"
	"cycleagent/internal/sender"
	"cycleagent/internal/service"
	"cycleagent/internal/settings"
	"cycleagent/internal/worker"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const startupErrorLogDir = "log/cycleagent"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the process boundary: every error and panic that reaches it is
// fatal and ends with exit code 1.
func run(args []string) (code int) {
	defer logger.Close()
	defer func() {
		if r := recover(); r != nil {
			fatal(fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
			code = 1
		}
	}()

	code, err := start(args)
	if err != nil {
		fatal(err)
		return 1
	}
	return code
}

func start(args []string) (int, error) {
	interactive := host.IsTerminal()
	if !interactive {
		// Service hosts start us in a system directory.
		logger.SetServiceMode(true)
		if err := chdirToExecutable(); err != nil {
			return 1, err
		}
	}

	store := settings.NewStore(settings.DefaultPath())
	if err := store.Reload(); err != nil {
		return 1, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := logger.Init(store.Snapshot().Logging); err != nil {
		return 1, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log := logger.WithComponent("main")
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Str("settings", store.Path()).
		Msg("Starting cycleagent")

	cycle := agent.New(collector.DefaultRegistry(), sender.NewSender, store)
	defer func() {
		log.Info().Msg("Closing sender")
		if err := cycle.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close sender")
		}
	}()
	w := worker.New(cycle, store)

	// The watcher starts after the host saved settings, so that save is not
	// seen as an edit.
	stopWatch := func() {}
	defer func() { stopWatch() }()
	prepared := func() {
		if len(args) == 0 || !interactive {
			stopWatch = watchLogging(store.Path(), log)
		}
	}

	hostLog := logger.WithComponent("main")
	code, err := host.Run(args, host.Config{
		Worker:      w,
		Settings:    store,
		Logger:      &hostLog,
		Interactive: func() bool { return interactive },
		Prepared:    prepared,
		Parse: func(a []string) int {
			return cli.Execute(a, store, version, os.Stdout, os.Stderr)
		},
	})
	if err != nil {
		return code, err
	}

	log.Info().
		Int("exit_code", code).
		Uint64("cycles", w.Cycles()).
		Msg("cycleagent stopped")
	return code, nil
}

// watchLogging re-initializes the logger whenever the settings file changes.
// The worker picks up every other setting on its own at the next cycle.
func watchLogging(path string, log zerolog.Logger) func() {
	fw, err := settings.NewSettingsWatcher(path, func(s *settings.Settings) {
		if err := logger.Init(s.Logging); err != nil {
			log.Error().Err(err).Msg("Failed to re-initialize logger")
			return
		}
		log.Info().Str("level", s.Logging.Level).Msg("Logging configuration reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
		return func() {}
	}
	if err := fw.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
		return func() {}
	}
	return func() {
		if err := fw.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop settings watcher")
		}
	}
}

func chdirToExecutable() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}
	dir := filepath.Dir(exe)
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("failed to chdir to %s: %w", dir, err)
	}
	return nil
}

func fatal(err error) {
	log := logger.WithComponent("main")
	log.WithLevel(zerolog.FatalLevel).
		Err(err).
		Msg("cycleagent terminated")
	service.ReportFatal(startupErrorLogDir, err)
	fmt.Fprintf(os.Stderr, "cycleagent: %v\n", err)
}
