// Package settings holds the agent's persisted configuration.
package settings

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cycleagent/internal/logger"
)

// Settings is the root configuration structure.
type Settings struct {
	Interval           time.Duration              `json:"Interval"`
	PostCyclePause     time.Duration              `json:"PostCyclePause"`
	InstrumentationKey string                     `json:"InstrumentationKey"`
	AgentID            string                     `json:"AgentID"`
	Hostname           string                     `json:"Hostname"`
	Tags               map[string]string          `json:"Tags"`
	Sender             SenderConfig               `json:"Sender"`
	Collectors         map[string]CollectorConfig `json:"Collectors"`
	Logging            logger.Config              `json:"Logging"`
}

// SenderConfig selects and configures the metric sender.
type SenderConfig struct {
	Type       string      `json:"Type"` // "file", "kafka" or "redis"
	File       FileConfig  `json:"File"`
	Kafka      KafkaConfig `json:"Kafka"`
	Redis      RedisConfig `json:"Redis"`
	SOCKSProxy SOCKSConfig `json:"SocksProxy"`
}

// FileConfig contains settings for the file sender.
type FileConfig struct {
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	Pretty     bool   `json:"Pretty"`
}

// KafkaConfig contains Kafka connection settings.
type KafkaConfig struct {
	Brokers        []string      `json:"Brokers"`
	Topic          string        `json:"Topic"`
	Compression    string        `json:"Compression"`
	RequiredAcks   int           `json:"RequiredAcks"`
	MaxRetries     int           `json:"MaxRetries"`
	RetryBackoff   time.Duration `json:"RetryBackoff"`
	FlushFrequency time.Duration `json:"FlushFrequency"`
	FlushMessages  int           `json:"FlushMessages"`
	Timeout        time.Duration `json:"Timeout"`
	EnableTLS      bool          `json:"EnableTLS"`
	TLSCertFile    string        `json:"TLSCertFile"`
	TLSKeyFile     string        `json:"TLSKeyFile"`
	TLSCAFile      string        `json:"TLSCAFile"`
	SASLEnabled    bool          `json:"SASLEnabled"`
	SASLMechanism  string        `json:"SASLMechanism"`
	SASLUser       string        `json:"SASLUser"`
	SASLPassword   string        `json:"SASLPassword"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Address   string        `json:"Address"`
	Password  string        `json:"Password"`
	DB        int           `json:"DB"`
	KeyPrefix string        `json:"KeyPrefix"`
	Channel   string        `json:"Channel"`
	TTL       time.Duration `json:"TTL"`
}

// SOCKSConfig contains SOCKS5 proxy settings.
type SOCKSConfig struct {
	Host string `json:"Host"`
	Port int    `json:"Port"`
}

// CollectorConfig contains settings for individual collectors.
type CollectorConfig struct {
	Enabled    bool     `json:"Enabled"`
	Disks      []string `json:"Disks,omitempty"`
	Interfaces []string `json:"Interfaces,omitempty"`
	Processes  []string `json:"Processes,omitempty"`
}

// Collector names known to the agent.
const (
	CollectorCPU     = "cpu"
	CollectorMemory  = "memory"
	CollectorDisk    = "disk"
	CollectorUptime  = "uptime"
	CollectorOS      = "os"
	CollectorNetwork = "network"
	CollectorProcess = "process"
)

// Default returns settings with sensible defaults.
func Default() *Settings {
	return &Settings{
		Interval:       75 * time.Second,
		PostCyclePause: 10 * time.Second,
		Sender: SenderConfig{
			Type: "file",
			File: FileConfig{
				FilePath:   "log/cycleagent/metrics.jsonl",
				MaxSizeMB:  50,
				MaxBackups: 3,
			},
			Kafka: KafkaConfig{
				Brokers:        []string{"localhost:9092"},
				Topic:          "agent-metrics",
				Compression:    "snappy",
				RequiredAcks:   1,
				MaxRetries:     3,
				RetryBackoff:   100 * time.Millisecond,
				FlushFrequency: 500 * time.Millisecond,
				FlushMessages:  100,
				Timeout:        10 * time.Second,
			},
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "cycleagent",
				Channel:   "cycleagent:metrics",
				TTL:       5 * time.Minute,
			},
		},
		Collectors: map[string]CollectorConfig{
			CollectorCPU:     {Enabled: true},
			CollectorMemory:  {Enabled: true},
			CollectorDisk:    {Enabled: true},
			CollectorUptime:  {Enabled: true},
			CollectorOS:      {Enabled: false},
			CollectorNetwork: {Enabled: true},
			CollectorProcess: {Enabled: false},
		},
		Logging: logger.DefaultConfig(),
	}
}

// Validate checks values the worker loop and senders depend on.
func (s *Settings) Validate() error {
	if s.Interval < 0 {
		return fmt.Errorf("Interval must not be negative, got %s", s.Interval)
	}
	if s.PostCyclePause < 0 {
		return fmt.Errorf("PostCyclePause must not be negative, got %s", s.PostCyclePause)
	}
	switch strings.ToLower(s.Sender.Type) {
	case "file", "kafka", "redis":
	default:
		return fmt.Errorf("unknown sender type: %s (supported: file, kafka, redis)", s.Sender.Type)
	}
	return nil
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	if s.Tags != nil {
		c.Tags = make(map[string]string, len(s.Tags))
		for k, v := range s.Tags {
			c.Tags[k] = v
		}
	}
	if s.Collectors != nil {
		c.Collectors = make(map[string]CollectorConfig, len(s.Collectors))
		for k, v := range s.Collectors {
			c.Collectors[k] = v
		}
	}
	c.Sender.Kafka.Brokers = append([]string(nil), s.Sender.Kafka.Brokers...)
	return &c
}

// Merge applies non-zero values from other to these settings.
func (s *Settings) Merge(other *Settings) {
	if other == nil {
		return
	}

	if other.Interval != 0 {
		s.Interval = other.Interval
	}
	if other.PostCyclePause != 0 {
		s.PostCyclePause = other.PostCyclePause
	}
	if other.InstrumentationKey != "" {
		s.InstrumentationKey = other.InstrumentationKey
	}
	if other.AgentID != "" {
		s.AgentID = other.AgentID
	}
	if other.Hostname != "" {
		s.Hostname = other.Hostname
	}
	if len(other.Tags) > 0 {
		s.Tags = other.Tags
	}

	s.Sender.merge(&other.Sender)

	for name, cc := range other.Collectors {
		if s.Collectors == nil {
			s.Collectors = make(map[string]CollectorConfig)
		}
		existing := s.Collectors[name]
		existing.Enabled = cc.Enabled
		if len(cc.Disks) > 0 {
			existing.Disks = cc.Disks
		}
		if len(cc.Interfaces) > 0 {
			existing.Interfaces = cc.Interfaces
		}
		if len(cc.Processes) > 0 {
			existing.Processes = cc.Processes
		}
		s.Collectors[name] = existing
	}

	mergeLogging(&s.Logging, &other.Logging)
}

func (c *SenderConfig) merge(other *SenderConfig) {
	if other.Type != "" {
		c.Type = other.Type
	}

	if other.File.FilePath != "" {
		c.File.FilePath = other.File.FilePath
	}
	if other.File.MaxSizeMB != 0 {
		c.File.MaxSizeMB = other.File.MaxSizeMB
	}
	if other.File.MaxBackups != 0 {
		c.File.MaxBackups = other.File.MaxBackups
	}
	c.File.Pretty = other.File.Pretty

	k, o := &c.Kafka, &other.Kafka
	if len(o.Brokers) > 0 {
		k.Brokers = o.Brokers
	}
	if o.Topic != "" {
		k.Topic = o.Topic
	}
	if o.Compression != "" {
		k.Compression = o.Compression
	}
	if o.RequiredAcks != 0 {
		k.RequiredAcks = o.RequiredAcks
	}
	if o.MaxRetries != 0 {
		k.MaxRetries = o.MaxRetries
	}
	if o.RetryBackoff != 0 {
		k.RetryBackoff = o.RetryBackoff
	}
	if o.FlushFrequency != 0 {
		k.FlushFrequency = o.FlushFrequency
	}
	if o.FlushMessages != 0 {
		k.FlushMessages = o.FlushMessages
	}
	if o.Timeout != 0 {
		k.Timeout = o.Timeout
	}
	k.EnableTLS = o.EnableTLS
	if o.TLSCertFile != "" {
		k.TLSCertFile = o.TLSCertFile
	}
	if o.TLSKeyFile != "" {
		k.TLSKeyFile = o.TLSKeyFile
	}
	if o.TLSCAFile != "" {
		k.TLSCAFile = o.TLSCAFile
	}
	k.SASLEnabled = o.SASLEnabled
	if o.SASLMechanism != "" {
		k.SASLMechanism = o.SASLMechanism
	}
	if o.SASLUser != "" {
		k.SASLUser = o.SASLUser
	}
	if o.SASLPassword != "" {
		k.SASLPassword = o.SASLPassword
	}

	r, ro := &c.Redis, &other.Redis
	if ro.Address != "" {
		r.Address = ro.Address
	}
	if ro.Password != "" {
		r.Password = ro.Password
	}
	if ro.DB != 0 {
		r.DB = ro.DB
	}
	if ro.KeyPrefix != "" {
		r.KeyPrefix = ro.KeyPrefix
	}
	if ro.Channel != "" {
		r.Channel = ro.Channel
	}
	if ro.TTL != 0 {
		r.TTL = ro.TTL
	}

	if other.SOCKSProxy.Host != "" {
		c.SOCKSProxy.Host = other.SOCKSProxy.Host
	}
	if other.SOCKSProxy.Port != 0 {
		c.SOCKSProxy.Port = other.SOCKSProxy.Port
	}
}

func mergeLogging(dst, src *logger.Config) {
	if src.Level != "" {
		dst.Level = src.Level
	}
	if src.FilePath != "" {
		dst.FilePath = src.FilePath
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.MaxSizeMB != 0 {
		dst.MaxSizeMB = src.MaxSizeMB
	}
	if src.MaxBackups != 0 {
		dst.MaxBackups = src.MaxBackups
	}
	if src.MaxAgeDays != 0 {
		dst.MaxAgeDays = src.MaxAgeDays
	}
	dst.Compress = src.Compress
	dst.Console = src.Console
}

// ResolveHostname returns the configured hostname or the system hostname.
func (s *Settings) ResolveHostname() string {
	if s.Hostname != "" {
		return s.Hostname
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// ResolveAgentID returns AgentID, falling back to the hostname.
func (s *Settings) ResolveAgentID() string {
	if s.AgentID != "" {
		return s.AgentID
	}
	return s.ResolveHostname()
}
