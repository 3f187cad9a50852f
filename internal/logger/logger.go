// Package logger configures the process-wide zerolog logger: a rotated log
// file plus console output that never blocks the caller.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the logger configuration.
type Config struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	Format     string `json:"Format"` // "text" (fixed columns) or "json"
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   bool   `json:"Compress"`
	Console    bool   `json:"Console"`
}

// DefaultConfig returns sensible defaults for logging.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "log/cycleagent/cycleagent.log",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Console:    true,
	}
}

const consoleBuffer = 1000

// consoleWriter hands events to a goroutine that writes them to out, so a
// stalled terminal (Windows Quick Edit selection, a full pipe) cannot hold up
// file logging. Events that do not fit in the queue are dropped and counted.
type consoleWriter struct {
	out     io.Writer
	queue   chan []byte
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func newConsoleWriter(out io.Writer, size int) *consoleWriter {
	cw := &consoleWriter{
		out:   out,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
	go cw.run()
	return cw
}

// Write never blocks. It always reports success so zerolog keeps going.
func (cw *consoleWriter) Write(p []byte) (int, error) {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	if cw.closed {
		return len(p), nil
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case cw.queue <- buf:
	default:
		cw.dropped.Add(1)
	}
	return len(p), nil
}

func (cw *consoleWriter) run() {
	defer close(cw.done)
	for p := range cw.queue {
		_, _ = cw.out.Write(p)
	}
}

// Close drains queued events and returns how many were dropped.
func (cw *consoleWriter) Close() uint64 {
	cw.once.Do(func() {
		cw.mu.Lock()
		cw.closed = true
		close(cw.queue)
		cw.mu.Unlock()
		<-cw.done
	})
	return cw.dropped.Load()
}

// sinks are the writers opened by one Init call.
type sinks struct {
	file    *lumberjack.Logger
	console *consoleWriter
	out     io.Writer
}

func openSinks(cfg Config, service bool) (*sinks, error) {
	s := &sinks{}
	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, err
		}
		s.file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		if strings.EqualFold(cfg.Format, "json") {
			writers = append(writers, s.file)
		} else {
			writers = append(writers, NewFixedFormatWriter(s.file))
		}
	}

	// Without a file, the console is the only place left to log to.
	if !service && (cfg.Console || len(writers) == 0) {
		s.console = newConsoleWriter(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}, consoleBuffer)
		writers = append(writers, s.console)
	}

	switch len(writers) {
	case 0:
		s.out = io.Discard
	case 1:
		s.out = writers[0]
	default:
		s.out = zerolog.MultiLevelWriter(writers...)
	}
	return s, nil
}

// close releases the sinks and returns the console drop count.
func (s *sinks) close() uint64 {
	if s == nil {
		return 0
	}
	var dropped uint64
	if s.console != nil {
		dropped = s.console.Close()
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	return dropped
}

// swapWriter is the single writer every logger is built on. Init and Close
// replace its target, so loggers created before a reload follow it.
type swapWriter struct {
	mu     sync.RWMutex
	target io.Writer
}

func (w *swapWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.target.Write(p)
}

func (w *swapWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if lw, ok := w.target.(zerolog.LevelWriter); ok {
		return lw.WriteLevel(level, p)
	}
	return w.target.Write(p)
}

// swap installs target once no write is in flight on the previous one.
func (w *swapWriter) swap(target io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = target
}

var (
	mu          sync.Mutex
	root        = &swapWriter{target: io.Discard}
	current     = zerolog.New(root).With().Timestamp().Caller().Logger()
	active      *sinks
	serviceMode bool
)

// SetServiceMode disables console output for processes without a terminal.
// It takes effect on the next Init.
func SetServiceMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	serviceMode = enabled
}

// Init (re)builds the global logger from cfg. On hot reload the previous
// sinks are closed only after the new ones took over; if opening fails the
// previous sinks stay in place.
func Init(cfg Config) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = l
		}
	}

	mu.Lock()
	defer mu.Unlock()

	next, err := openSinks(cfg, serviceMode)
	if err != nil {
		return err
	}
	root.swap(next.out)
	dropped := active.close()
	active = next

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if dropped > 0 {
		current.Warn().Uint64("dropped", dropped).Msg("Console output dropped events")
	}
	return nil
}

// Close flushes the console and closes the log file. Later events, including
// those of loggers obtained earlier, are discarded.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	root.swap(io.Discard)
	active.close()
	active = nil
}

// Logger returns a copy of the global logger.
func Logger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	l := current
	return &l
}

// WithComponent returns a logger with component field.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}
