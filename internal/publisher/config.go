package publisher

import (
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"theragraph/internal/events"
)

// Config holds producer settings. Zero durations and sizes fall back to
// librdkafka defaults.
type Config struct {
	Enabled               bool
	Brokers               string
	ClientID              string
	TopicUserActions      string
	TopicBlockchainEvents string
	Acks                  string
	Idempotence           bool
	Compression           string
	BatchSize             int
	Linger                time.Duration
	MessageTimeout        time.Duration
	DeliveryTimeout       time.Duration
	MaxMessageBytes       int
	SendMaxAttempts       int
	SendBackoff           time.Duration
}

// DefaultConfig mirrors the deployment defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		Brokers:               "kafka:29092",
		ClientID:              "theragraph-engine",
		TopicUserActions:      events.TopicUserActions,
		TopicBlockchainEvents: events.TopicBlockchainEvents,
		Acks:                  "all",
		Idempotence:           true,
		Compression:           "lz4",
		BatchSize:             16384,
		Linger:                5 * time.Millisecond,
		MessageTimeout:        5 * time.Second,
		DeliveryTimeout:       120 * time.Second,
		MaxMessageBytes:       20 * 1024 * 1024,
		SendMaxAttempts:       5,
		SendBackoff:           200 * time.Millisecond,
	}
}

// ConfigMap translates cfg into librdkafka properties. message.timeout.ms
// bounds how long librdkafka keeps retrying one message internally.
func ConfigMap(cfg Config) *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":                     cfg.Brokers,
		"client.id":                             cfg.ClientID,
		"acks":                                  cfg.Acks,
		"enable.idempotence":                    cfg.Idempotence,
		"max.in.flight.requests.per.connection": 5,
		"retry.backoff.ms":                      100,
		"reconnect.backoff.ms":                  1000,
		"reconnect.backoff.max.ms":              10000,
		"request.timeout.ms":                    30000,
		"statistics.interval.ms":                0,
		"go.delivery.reports":                   true,
	}
	if cfg.Compression != "" {
		(*cm)["compression.type"] = cfg.Compression
	}
	if cfg.BatchSize > 0 {
		(*cm)["batch.size"] = cfg.BatchSize
	}
	if cfg.Linger > 0 {
		(*cm)["linger.ms"] = int(cfg.Linger.Milliseconds())
	}
	if cfg.MessageTimeout > 0 {
		(*cm)["message.timeout.ms"] = int(cfg.MessageTimeout.Milliseconds())
	}
	if cfg.MaxMessageBytes > 0 {
		(*cm)["message.max.bytes"] = cfg.MaxMessageBytes
	}
	return cm
}

// TopicFor routes social kinds to the user actions topic and everything
// else, Unknown included, to the raw events topic.
func (cfg Config) TopicFor(kind events.Kind) string {
	if kind.Topic() == events.TopicUserActions {
		if cfg.TopicUserActions != "" {
			return cfg.TopicUserActions
		}
		return events.TopicUserActions
	}
	if cfg.TopicBlockchainEvents != "" {
		return cfg.TopicBlockchainEvents
	}
	return events.TopicBlockchainEvents
}
