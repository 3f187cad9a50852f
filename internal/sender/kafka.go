package sender

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"

	"cycleagent/internal/collector"
	"cycleagent/internal/logger"
	"cycleagent/internal/network"
	"cycleagent/internal/settings"
)

var (
	// SHA256 hash generator for SCRAM-SHA-256
	SHA256 scram.HashGeneratorFcn = func() hash.Hash { return sha256.New() }
	// SHA512 hash generator for SCRAM-SHA-512
	SHA512 scram.HashGeneratorFcn = func() hash.Hash { return sha512.New() }
)

// XDGSCRAMClient implements sarama.SCRAMClient for SCRAM authentication.
type XDGSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	HashGeneratorFcn scram.HashGeneratorFcn
}

// Begin starts the SCRAM authentication.
func (x *XDGSCRAMClient) Begin(userName, password, authzID string) (err error) {
	x.Client, err = x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

// Step processes the server challenge.
func (x *XDGSCRAMClient) Step(challenge string) (response string, err error) {
	return x.ClientConversation.Step(challenge)
}

// Done returns true if the conversation is complete.
func (x *XDGSCRAMClient) Done() bool {
	return x.ClientConversation.Done()
}

// KafkaSender sends metrics to Kafka through an async producer.
type KafkaSender struct {
	producer sarama.AsyncProducer
	topic    string
	mu       sync.RWMutex
	closed   bool
	failures atomic.Uint64
	wg       sync.WaitGroup
}

// NewKafkaSender creates a new Kafka sender with the given configuration.
func NewKafkaSender(cfg settings.KafkaConfig, socksCfg settings.SOCKSConfig) (*KafkaSender, error) {
	saramaConfig, err := newSaramaConfig(cfg, socksCfg)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log := logger.WithComponent("kafka-sender")
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("KafkaSender initialized")

	return newKafkaSender(producer, cfg.Topic), nil
}

func newKafkaSender(producer sarama.AsyncProducer, topic string) *KafkaSender {
	s := &KafkaSender{
		producer: producer,
		topic:    topic,
	}
	s.wg.Add(1)
	go s.handleErrors()
	return s
}

var compressionCodecs = map[string]sarama.CompressionCodec{
	"":       sarama.CompressionSnappy,
	"snappy": sarama.CompressionSnappy,
	"none":   sarama.CompressionNone,
	"gzip":   sarama.CompressionGZIP,
	"lz4":    sarama.CompressionLZ4,
	"zstd":   sarama.CompressionZSTD,
}

func compressionCodec(name string) (sarama.CompressionCodec, error) {
	codec, ok := compressionCodecs[strings.ToLower(name)]
	if !ok {
		return sarama.CompressionNone, fmt.Errorf("unknown Kafka compression %q", name)
	}
	return codec, nil
}

// requiredAcks maps the settings value (0, 1 or -1) to the producer ack level.
func requiredAcks(n int) (sarama.RequiredAcks, error) {
	switch n {
	case 0:
		return sarama.NoResponse, nil
	case 1:
		return sarama.WaitForLocal, nil
	case -1:
		return sarama.WaitForAll, nil
	}
	return 0, fmt.Errorf("invalid Kafka RequiredAcks %d (want 0, 1 or -1)", n)
}

func configureSASL(sc *sarama.Config, cfg settings.KafkaConfig) error {
	sc.Net.SASL.Enable = true
	sc.Net.SASL.User = cfg.SASLUser
	sc.Net.SASL.Password = cfg.SASLPassword

	switch strings.ToUpper(cfg.SASLMechanism) {
	case "", "PLAIN":
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case "SCRAM-SHA-256":
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
		}
	case "SCRAM-SHA-512":
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
		}
	default:
		return fmt.Errorf("unsupported SASL mechanism %q", cfg.SASLMechanism)
	}
	return nil
}

// newSaramaConfig builds an async producer configuration that reports
// delivery errors but not successes.
func newSaramaConfig(cfg settings.KafkaConfig, socksCfg settings.SOCKSConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = "cycleagent"
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	sc.Producer.Retry.Max = cfg.MaxRetries
	sc.Producer.Retry.Backoff = cfg.RetryBackoff
	sc.Producer.Flush.Frequency = cfg.FlushFrequency
	sc.Producer.Flush.Messages = cfg.FlushMessages

	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	sc.Producer.Compression = codec

	acks, err := requiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}
	sc.Producer.RequiredAcks = acks

	if cfg.Timeout > 0 {
		sc.Net.DialTimeout = cfg.Timeout
		sc.Net.ReadTimeout = cfg.Timeout
		sc.Net.WriteTimeout = cfg.Timeout
	}

	if cfg.EnableTLS {
		tlsConfig, err := createTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsConfig
	}

	if cfg.SASLEnabled {
		if err := configureSASL(sc, cfg); err != nil {
			return nil, err
		}
	}

	if network.Enabled(socksCfg) {
		dialer, err := network.NewSOCKS5Dialer(socksCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer for Kafka: %w", err)
		}
		sc.Net.Proxy.Enable = true
		sc.Net.Proxy.Dialer = dialer
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Kafka producer settings: %w", err)
	}
	return sc, nil
}

// Send queues a single metric on the producer. The agent ID is the message key.
func (s *KafkaSender) Send(ctx context.Context, data *collector.MetricData) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal metric data: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Value:     sarama.ByteEncoder(jsonData),
		Timestamp: data.Timestamp,
	}
	if data.AgentID != "" {
		msg.Key = sarama.StringEncoder(data.AgentID)
	}

	select {
	case s.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendBatch sends multiple metric data items to Kafka.
func (s *KafkaSender) SendBatch(ctx context.Context, data []*collector.MetricData) error {
	return sendEach(ctx, s, data)
}

// Failures returns the number of messages the producer reported as undeliverable.
func (s *KafkaSender) Failures() uint64 {
	return s.failures.Load()
}

// Close flushes and closes the producer.
func (s *KafkaSender) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.producer.Close()
	s.wg.Wait()
	return err
}

func (s *KafkaSender) handleErrors() {
	defer s.wg.Done()

	log := logger.WithComponent("kafka-sender")
	for perr := range s.producer.Errors() {
		s.failures.Add(1)
		ev := log.Error().Err(perr.Err)
		if perr.Msg != nil {
			ev = ev.Str("topic", perr.Msg.Topic).Interface("key", perr.Msg.Key)
		}
		ev.Msg("Failed to send message to Kafka")
	}
}

func createTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
