package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cycleagent/internal/collector"
	"cycleagent/internal/logger"
	"cycleagent/internal/network"
	"cycleagent/internal/settings"
)

const redisOpTimeout = 5 * time.Second

// RedisSender keeps the latest metric of each type under a key with a TTL
// and publishes every metric on a channel.
type RedisSender struct {
	client    *redis.Client
	keyPrefix string
	channel   string
	ttl       time.Duration
	mu        sync.RWMutex
	closed    bool
}

// NewRedisSender creates a Redis sender. The connection is opened lazily on first use.
func NewRedisSender(cfg settings.RedisConfig, socksCfg settings.SOCKSConfig) (*RedisSender, error) {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	dial, err := network.ContextDialer(socksCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for Redis: %w", err)
	}
	if dial != nil {
		opts.Dialer = dial
	}

	log := logger.WithComponent("redis-sender")
	log.Info().
		Str("address", cfg.Address).
		Int("db", cfg.DB).
		Str("channel", cfg.Channel).
		Msg("RedisSender initialized")

	return newRedisSender(redis.NewClient(opts), cfg), nil
}

func newRedisSender(client *redis.Client, cfg settings.RedisConfig) *RedisSender {
	return &RedisSender{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		channel:   cfg.Channel,
		ttl:       cfg.TTL,
	}
}

// Key returns the key holding the latest metric of a type for an agent.
func (s *RedisSender) Key(data *collector.MetricData) string {
	return fmt.Sprintf("%s:%s:%s", s.keyPrefix, data.AgentID, data.Type)
}

// Send stores the metric under its key and publishes it, in one pipeline.
func (s *RedisSender) Send(ctx context.Context, data *collector.MetricData) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal metric data: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	key := s.Key(data)
	_, err = s.client.Pipelined(opCtx, func(p redis.Pipeliner) error {
		p.Set(opCtx, key, payload, s.ttl)
		if s.channel != "" {
			p.Publish(opCtx, s.channel, payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Redis SET/PUBLISH %s failed: %w", key, err)
	}
	return nil
}

// SendBatch sends multiple metric data items.
func (s *RedisSender) SendBatch(ctx context.Context, data []*collector.MetricData) error {
	return sendEach(ctx, s, data)
}

// Close closes the Redis client.
func (s *RedisSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
