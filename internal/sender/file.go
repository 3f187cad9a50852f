package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"cycleagent/internal/collector"
	"cycleagent/internal/logger"
	"cycleagent/internal/settings"
)

// FileSender appends each heartbeat batch to a rotated JSON lines file.
// A batch is written with a single Write so rotation never splits it.
type FileSender struct {
	mu     sync.Mutex
	out    io.WriteCloser
	pretty bool
	closed bool
}

// NewFileSender creates the metrics directory and a rotating writer for cfg.
func NewFileSender(cfg settings.FileConfig) (*FileSender, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file sender requires a FilePath")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create metrics directory: %w", err)
	}

	log := logger.WithComponent("file-sender")
	log.Info().
		Str("file_path", cfg.FilePath).
		Int("max_size_mb", cfg.MaxSizeMB).
		Bool("pretty", cfg.Pretty).
		Msg("File sender ready")

	return newFileSender(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}, cfg.Pretty), nil
}

func newFileSender(out io.WriteCloser, pretty bool) *FileSender {
	return &FileSender{out: out, pretty: pretty}
}

// Send writes a single metric.
func (s *FileSender) Send(ctx context.Context, data *collector.MetricData) error {
	return s.SendBatch(ctx, []*collector.MetricData{data})
}

// SendBatch encodes every metric, then writes the whole batch at once.
func (s *FileSender) SendBatch(ctx context.Context, data []*collector.MetricData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if s.pretty {
		enc.SetIndent("", "  ")
	}
	for _, d := range data {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode %s metric: %w", d.Type, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if buf.Len() == 0 {
		return nil
	}
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// Close closes the underlying file. It is safe to call more than once.
func (s *FileSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.out.Close()
}
