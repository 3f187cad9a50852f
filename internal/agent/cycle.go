// Package agent is the heartbeat work run once per worker cycle: collect host
// metrics, enrich them with agent identity and send them.
package agent

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"cycleagent/internal/collector"
	"cycleagent/internal/logger"
	"cycleagent/internal/network"
	"cycleagent/internal/sender"
	"cycleagent/internal/settings"
)

const (
	// DefaultCollectTimeout bounds a single collector.
	DefaultCollectTimeout = 30 * time.Second

	// DefaultSendTimeout bounds delivery of one cycle's batch.
	DefaultSendTimeout = 10 * time.Second
)

// SettingsSource supplies the settings snapshot for a cycle.
type SettingsSource interface {
	Snapshot() *settings.Settings
}

// SenderFactory builds a sender from its settings section.
type SenderFactory func(cfg settings.SenderConfig) (sender.Sender, error)

// Cycle collects every enabled collector and sends the results.
type Cycle struct {
	registry       *collector.Registry
	newSender      SenderFactory
	source         SettingsSource
	clock          clock.Clock
	log            zerolog.Logger
	collectTimeout time.Duration
	sendTimeout    time.Duration
	localIP        string

	mu        sync.Mutex
	sender    sender.Sender
	senderCfg settings.SenderConfig
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithClock sets the clock used for collection timing.
func WithClock(clk clock.Clock) Option {
	return func(c *Cycle) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cycle) { c.log = log }
}

// WithTimeouts overrides the per-collector and send timeouts.
func WithTimeouts(collect, send time.Duration) Option {
	return func(c *Cycle) {
		c.collectTimeout = collect
		c.sendTimeout = send
	}
}

// WithLocalIP sets the address reported in the "ip" tag.
func WithLocalIP(ip string) Option {
	return func(c *Cycle) { c.localIP = ip }
}

// New creates a cycle over the given registry. The sender is built on the
// first send and rebuilt whenever the sender settings change.
func New(registry *collector.Registry, newSender SenderFactory, source SettingsSource, opts ...Option) *Cycle {
	c := &Cycle{
		registry:       registry,
		newSender:      newSender,
		source:         source,
		clock:          clock.New(),
		log:            logger.WithComponent("agent"),
		collectTimeout: DefaultCollectTimeout,
		sendTimeout:    DefaultSendTimeout,
		localIP:        network.PrimaryIPv4(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type result struct {
	name     string
	data     *collector.MetricData
	err      error
	duration time.Duration
}

// RunCycle implements worker.Cycler. Collector and send failures are
// aggregated into one *multierror.Error; partial results are still sent.
func (c *Cycle) RunCycle(ctx context.Context) error {
	snap := c.source.Snapshot()
	if err := c.registry.Configure(snap.Collectors); err != nil {
		return err
	}

	collectors := c.registry.EnabledCollectors()
	results := make([]result, len(collectors))

	var wg sync.WaitGroup
	for i, col := range collectors {
		wg.Add(1)
		go func(i int, col collector.Collector) {
			defer wg.Done()
			results[i] = c.collect(ctx, col)
		}(i, col)
	}
	wg.Wait()

	var merr *multierror.Error
	batch := make([]*collector.MetricData, 0, len(results))
	tags := c.tags(snap)
	agentID, hostname := snap.ResolveAgentID(), snap.ResolveHostname()

	for _, r := range results {
		if r.err != nil {
			merr = multierror.Append(merr, fmt.Errorf("collector %s: %w", r.name, r.err))
			continue
		}
		if r.data == nil {
			c.log.Warn().Str("collector", r.name).Msg("Collector returned nil data")
			continue
		}
		r.data.AgentID = agentID
		r.data.Hostname = hostname
		r.data.Tags = tags
		batch = append(batch, r.data)

		c.log.Debug().
			Str("collector", r.name).
			Dur("duration", r.duration).
			Msg("Collection completed")
	}

	if len(batch) > 0 {
		if err := c.send(ctx, snap.Sender, batch); err != nil {
			merr = multierror.Append(merr, err)
		} else {
			c.log.Info().
				Int("metrics", len(batch)).
				Int("collectors", len(collectors)).
				Msg("Heartbeat sent")
		}
	}

	return merr.ErrorOrNil()
}

// Close releases the current sender.
func (c *Cycle) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sender == nil {
		return nil
	}
	err := c.sender.Close()
	c.sender = nil
	return err
}

func (c *Cycle) send(ctx context.Context, cfg settings.SenderConfig, batch []*collector.MetricData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sender != nil && !reflect.DeepEqual(c.senderCfg, cfg) {
		c.log.Info().Str("type", cfg.Type).Msg("Sender settings changed, reconnecting")
		if err := c.sender.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Failed to close previous sender")
		}
		c.sender = nil
	}
	if c.sender == nil {
		s, err := c.newSender(cfg)
		if err != nil {
			return fmt.Errorf("create %s sender: %w", cfg.Type, err)
		}
		c.sender = s
		c.senderCfg = cfg
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.sender.SendBatch(sendCtx, batch); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (c *Cycle) collect(ctx context.Context, col collector.Collector) result {
	collectCtx, cancel := context.WithTimeout(ctx, c.collectTimeout)
	defer cancel()

	start := c.clock.Now()
	data, err := col.Collect(collectCtx)
	return result{
		name:     col.Name(),
		data:     data,
		err:      err,
		duration: c.clock.Now().Sub(start),
	}
}

// tags builds the per-cycle tag set. Every metric of the cycle shares it.
func (c *Cycle) tags(snap *settings.Settings) map[string]string {
	tags := make(map[string]string, len(snap.Tags)+2)
	for k, v := range snap.Tags {
		tags[k] = v
	}
	if snap.InstrumentationKey != "" {
		tags["instrumentation_key"] = snap.InstrumentationKey
	}
	if c.localIP != "" {
		tags["ip"] = c.localIP
	}
	return tags
}
