package host

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-tty"
	"github.com/rs/zerolog"
)

// Cancel keys accepted in interactive mode.
const (
	KeyCtrlC = '\x03'
	KeyCtrlQ = '\x11'
)

// KeySource yields key presses.
type KeySource interface {
	ReadKey() (rune, error)
	Close() error
}

type ttyKeys struct {
	t *tty.TTY
}

// OpenTTY opens the controlling terminal as a key source.
func OpenTTY() (KeySource, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal: %w", err)
	}
	if err := allowControlKeys(t.Input()); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("failed to disable terminal flow control: %w", err)
	}
	return &ttyKeys{t: t}, nil
}

func (k *ttyKeys) ReadKey() (rune, error) {
	return k.t.ReadRune()
}

func (k *ttyKeys) Close() error {
	return k.t.Close()
}

func isCancelKey(r rune) bool {
	return r == KeyCtrlC || r == KeyCtrlQ
}

func runInteractive(args []string, cfg Config, log zerolog.Logger) (int, error) {
	if len(args) > 0 {
		if cfg.Parse == nil {
			return 1, &PreconditionError{Field: "argument parser"}
		}
		return cfg.Parse(args), nil
	}

	openKeys := cfg.Keys
	if openKeys == nil {
		openKeys = OpenTTY
	}
	keys, err := openKeys()
	if err != nil {
		return 1, err
	}
	defer keys.Close()

	sigChan := cfg.Signals
	if sigChan == nil {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		defer signal.Stop(c)
		sigChan = c
	}

	if err := cfg.Worker.Start(); err != nil {
		return 1, fmt.Errorf("failed to start worker: %w", err)
	}
	log.Info().Msg("Running interactively, press Ctrl+C or Ctrl+Q to stop")

	// The reader goroutine ends when the key source is closed or fails.
	pressed := make(chan error, 1)
	go func() {
		for {
			r, err := keys.ReadKey()
			if err != nil {
				pressed <- err
				return
			}
			if isCancelKey(r) {
				pressed <- nil
				return
			}
		}
	}()

	select {
	case err := <-pressed:
		if err != nil {
			log.Info().Err(err).Msg("Key input closed, stopping")
		} else {
			log.Info().Msg("Cancel key pressed, stopping")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received interrupt, stopping")
	case <-cfg.Worker.Done():
		log.Warn().Msg("Worker exited on its own")
	}

	if err := cfg.Worker.Stop(); err != nil {
		log.Warn().Err(err).Msg("Worker did not stop cleanly")
	}
	if err := cfg.Worker.Err(); err != nil {
		return 1, err
	}
	return 0, nil
}
