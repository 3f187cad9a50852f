package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cycleagent/internal/logger"
)

// rawSettings is the on-disk form, with durations as strings such as "75s".
type rawSettings struct {
	Interval           string                     `json:"Interval"`
	PostCyclePause     string                     `json:"PostCyclePause"`
	InstrumentationKey string                     `json:"InstrumentationKey,omitempty"`
	AgentID            string                     `json:"AgentID,omitempty"`
	Hostname           string                     `json:"Hostname,omitempty"`
	Tags               map[string]string          `json:"Tags,omitempty"`
	Sender             rawSenderConfig            `json:"Sender"`
	Collectors         map[string]CollectorConfig `json:"Collectors"`
	Logging            logger.Config              `json:"Logging"`
}

type rawSenderConfig struct {
	Type       string         `json:"Type"`
	File       FileConfig     `json:"File"`
	Kafka      rawKafkaConfig `json:"Kafka"`
	Redis      rawRedisConfig `json:"Redis"`
	SOCKSProxy SOCKSConfig    `json:"SocksProxy"`
}

type rawKafkaConfig struct {
	Brokers        []string `json:"Brokers"`
	Topic          string   `json:"Topic"`
	Compression    string   `json:"Compression"`
	RequiredAcks   int      `json:"RequiredAcks"`
	MaxRetries     int      `json:"MaxRetries"`
	RetryBackoff   string   `json:"RetryBackoff"`
	FlushFrequency string   `json:"FlushFrequency"`
	FlushMessages  int      `json:"FlushMessages"`
	Timeout        string   `json:"Timeout"`
	EnableTLS      bool     `json:"EnableTLS"`
	TLSCertFile    string   `json:"TLSCertFile,omitempty"`
	TLSKeyFile     string   `json:"TLSKeyFile,omitempty"`
	TLSCAFile      string   `json:"TLSCAFile,omitempty"`
	SASLEnabled    bool     `json:"SASLEnabled"`
	SASLMechanism  string   `json:"SASLMechanism,omitempty"`
	SASLUser       string   `json:"SASLUser,omitempty"`
	SASLPassword   string   `json:"SASLPassword,omitempty"`
}

type rawRedisConfig struct {
	Address   string `json:"Address"`
	Password  string `json:"Password,omitempty"`
	DB        int    `json:"DB"`
	KeyPrefix string `json:"KeyPrefix"`
	Channel   string `json:"Channel"`
	TTL       string `json:"TTL"`
}

// Load reads settings from the specified file path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// Parse parses settings from JSON bytes on top of the defaults.
func Parse(data []byte) (*Settings, error) {
	var raw rawSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse settings JSON: %w", err)
	}

	parsed, err := convertRaw(&raw)
	if err != nil {
		return nil, err
	}

	s := Default()
	s.Merge(parsed)
	// "0s" switches the pause off; Merge alone would keep the default.
	if raw.PostCyclePause != "" {
		s.PostCyclePause = parsed.PostCyclePause
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// Marshal renders settings in the on-disk form.
func Marshal(s *Settings) ([]byte, error) {
	raw := rawSettings{
		Interval:           s.Interval.String(),
		PostCyclePause:     s.PostCyclePause.String(),
		InstrumentationKey: s.InstrumentationKey,
		AgentID:            s.AgentID,
		Hostname:           s.Hostname,
		Tags:               s.Tags,
		Collectors:         s.Collectors,
		Logging:            s.Logging,
		Sender: rawSenderConfig{
			Type:       s.Sender.Type,
			File:       s.Sender.File,
			SOCKSProxy: s.Sender.SOCKSProxy,
			Kafka: rawKafkaConfig{
				Brokers:        s.Sender.Kafka.Brokers,
				Topic:          s.Sender.Kafka.Topic,
				Compression:    s.Sender.Kafka.Compression,
				RequiredAcks:   s.Sender.Kafka.RequiredAcks,
				MaxRetries:     s.Sender.Kafka.MaxRetries,
				RetryBackoff:   s.Sender.Kafka.RetryBackoff.String(),
				FlushFrequency: s.Sender.Kafka.FlushFrequency.String(),
				FlushMessages:  s.Sender.Kafka.FlushMessages,
				Timeout:        s.Sender.Kafka.Timeout.String(),
				EnableTLS:      s.Sender.Kafka.EnableTLS,
				TLSCertFile:    s.Sender.Kafka.TLSCertFile,
				TLSKeyFile:     s.Sender.Kafka.TLSKeyFile,
				TLSCAFile:      s.Sender.Kafka.TLSCAFile,
				SASLEnabled:    s.Sender.Kafka.SASLEnabled,
				SASLMechanism:  s.Sender.Kafka.SASLMechanism,
				SASLUser:       s.Sender.Kafka.SASLUser,
				SASLPassword:   s.Sender.Kafka.SASLPassword,
			},
			Redis: rawRedisConfig{
				Address:   s.Sender.Redis.Address,
				Password:  s.Sender.Redis.Password,
				DB:        s.Sender.Redis.DB,
				KeyPrefix: s.Sender.Redis.KeyPrefix,
				Channel:   s.Sender.Redis.Channel,
				TTL:       s.Sender.Redis.TTL.String(),
			},
		},
	}
	return json.MarshalIndent(raw, "", "  ")
}

func convertRaw(raw *rawSettings) (*Settings, error) {
	s := &Settings{
		InstrumentationKey: raw.InstrumentationKey,
		AgentID:            raw.AgentID,
		Hostname:           raw.Hostname,
		Tags:               raw.Tags,
		Collectors:         raw.Collectors,
		Logging:            raw.Logging,
		Sender: SenderConfig{
			Type:       raw.Sender.Type,
			File:       raw.Sender.File,
			SOCKSProxy: raw.Sender.SOCKSProxy,
		},
	}

	var err error
	if s.Interval, err = parseDuration("Interval", raw.Interval); err != nil {
		return nil, err
	}
	if s.PostCyclePause, err = parseDuration("PostCyclePause", raw.PostCyclePause); err != nil {
		return nil, err
	}

	kafka, err := convertRawKafka(&raw.Sender.Kafka)
	if err != nil {
		return nil, err
	}
	s.Sender.Kafka = *kafka

	s.Sender.Redis = RedisConfig{
		Address:   raw.Sender.Redis.Address,
		Password:  raw.Sender.Redis.Password,
		DB:        raw.Sender.Redis.DB,
		KeyPrefix: raw.Sender.Redis.KeyPrefix,
		Channel:   raw.Sender.Redis.Channel,
	}
	if s.Sender.Redis.TTL, err = parseDuration("Redis.TTL", raw.Sender.Redis.TTL); err != nil {
		return nil, err
	}

	return s, nil
}

func convertRawKafka(raw *rawKafkaConfig) (*KafkaConfig, error) {
	kafka := &KafkaConfig{
		Brokers:       raw.Brokers,
		Topic:         raw.Topic,
		Compression:   raw.Compression,
		RequiredAcks:  raw.RequiredAcks,
		MaxRetries:    raw.MaxRetries,
		FlushMessages: raw.FlushMessages,
		EnableTLS:     raw.EnableTLS,
		TLSCertFile:   raw.TLSCertFile,
		TLSKeyFile:    raw.TLSKeyFile,
		TLSCAFile:     raw.TLSCAFile,
		SASLEnabled:   raw.SASLEnabled,
		SASLMechanism: raw.SASLMechanism,
		SASLUser:      raw.SASLUser,
		SASLPassword:  raw.SASLPassword,
	}

	var err error
	if kafka.RetryBackoff, err = parseDuration("Kafka.RetryBackoff", raw.RetryBackoff); err != nil {
		return nil, err
	}
	if kafka.FlushFrequency, err = parseDuration("Kafka.FlushFrequency", raw.FlushFrequency); err != nil {
		return nil, err
	}
	if kafka.Timeout, err = parseDuration("Kafka.Timeout", raw.Timeout); err != nil {
		return nil, err
	}
	return kafka, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	return d, nil
}
