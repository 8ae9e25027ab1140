package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"theragraph/internal/metrics"
	"theragraph/internal/model"
	"theragraph/internal/parser"
	"theragraph/internal/retry"
)

// maxInFlight is the backlog above which the producer reports unhealthy.
const maxInFlight = 10000

var eventNamespace = uuid.MustParse("6f1c1d2e-8b1a-4f7e-9c55-2d8e3a9b4c10")

// client is the subset of *kafka.Producer used here.
type client interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Len() int
	Close()
}

// Message pairs a partition key with its event.
type Message struct {
	Key   string
	Event model.ParsedEvent
}

// Stats is a snapshot of producer counters.
type Stats struct {
	MessagesSent   uint64 `json:"messages_sent"`
	MessagesFailed uint64 `json:"messages_failed"`
	BytesSent      uint64 `json:"bytes_sent"`
	InFlight       uint64 `json:"in_flight"`
}

// Producer publishes parsed events to Kafka. It is safe for concurrent use.
// A disabled producer accepts and discards every event.
type Producer struct {
	cfg    Config
	client client
	logger *zap.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
	bytes  atomic.Uint64

	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once
}

// New connects a producer, or returns a no-op one when cfg.Enabled is false.
func New(cfg Config, logger *zap.Logger) (*Producer, error) {
	if !cfg.Enabled {
		return NewNoop(cfg, logger), nil
	}
	if cfg.Brokers == "" {
		return nil, errors.New("kafka brokers are required")
	}
	kp, err := kafka.NewProducer(ConfigMap(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(cfg, kp, logger), nil
}

// NewNoop returns a producer that discards every event.
func NewNoop(cfg Config, logger *zap.Logger) *Producer {
	cfg.Enabled = false
	return newProducer(cfg, nil, logger)
}

func newProducer(cfg Config, c client, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 120 * time.Second
	}
	p := &Producer{
		cfg:     cfg,
		client:  c,
		logger:  logger,
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	if c == nil {
		close(p.drained)
		return p
	}
	go p.drainEvents(c.Events())
	return p
}

// Enabled reports whether events reach a broker.
func (p *Producer) Enabled() bool { return p.client != nil }

// Publish sends ev to the topic selected by its kind, keyed by contract.
func (p *Producer) Publish(ctx context.Context, ev model.ParsedEvent) error {
	return p.Send(ctx, p.cfg.TopicFor(ev.Kind), parser.PartitionKey(ev), ev)
}

// Send produces one event and waits for its delivery report, retrying
// transient failures.
func (p *Producer) Send(ctx context.Context, topic, key string, ev model.ParsedEvent) error {
	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("marshal event: %w", err)
	}

	cfg := retry.Config{MaxAttempts: p.cfg.SendMaxAttempts, InitialDelay: p.cfg.SendBackoff}
	err = retry.Run(ctx, cfg, "kafka_send", func(ctx context.Context) error {
		deliveryChan := make(chan kafka.Event, 1)
		if err := p.client.Produce(p.message(topic, key, ev, payload), deliveryChan); err != nil {
			return err
		}
		return p.await(ctx, deliveryChan)
	})
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to deliver event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.String("event_type", ev.EventType),
			zap.String("tx_hash", ev.TransactionHash),
			zap.Error(err),
		)
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	p.sent.Add(1)
	p.bytes.Add(uint64(len(payload)))
	metrics.EventPublishedInc(topic)
	return nil
}

// SendBatch produces every message before waiting for any report. It returns
// an error counting the failed deliveries and wrapping the first failure.
func (p *Producer) SendBatch(ctx context.Context, topic string, msgs []Message) error {
	if p.client == nil || len(msgs) == 0 {
		return nil
	}

	deliveryChan := make(chan kafka.Event, len(msgs))
	sizes := make(map[string]int, len(msgs))
	var (
		failed   int
		firstErr error
		pending  int
	)
	fail := func(err error) {
		failed++
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, m := range msgs {
		payload, err := json.Marshal(m.Event)
		if err != nil {
			fail(fmt.Errorf("marshal event: %w", err))
			continue
		}
		if err := p.client.Produce(p.message(topic, m.Key, m.Event, payload), deliveryChan); err != nil {
			fail(err)
			continue
		}
		sizes[eventID(m.Event)] = len(payload)
		pending++
	}

	timer := time.NewTimer(p.cfg.DeliveryTimeout)
	defer timer.Stop()

	for pending > 0 {
		select {
		case e := <-deliveryChan:
			pending--
			m, ok := e.(*kafka.Message)
			if !ok {
				fail(fmt.Errorf("unexpected delivery event: %v", e))
				continue
			}
			if m.TopicPartition.Error != nil {
				fail(m.TopicPartition.Error)
				continue
			}
			p.sent.Add(1)
			p.bytes.Add(uint64(sizes[headerValue(m, "event-id")]))
			metrics.EventPublishedInc(topic)
		case <-timer.C:
			for ; pending > 0; pending-- {
				fail(fmt.Errorf("delivery report timeout after %v", p.cfg.DeliveryTimeout))
			}
		case <-ctx.Done():
			for ; pending > 0; pending-- {
				fail(ctx.Err())
			}
		}
	}

	if failed > 0 {
		p.failed.Add(uint64(failed))
		return fmt.Errorf("%d of %d messages failed to deliver: %w", failed, len(msgs), firstErr)
	}
	return nil
}

func (p *Producer) await(ctx context.Context, deliveryChan chan kafka.Event) error {
	timer := time.NewTimer(p.cfg.DeliveryTimeout)
	defer timer.Stop()

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event: %v", e)
		}
		if m.TopicPartition.Error != nil {
			return m.TopicPartition.Error
		}
		return nil
	case <-timer.C:
		return retry.Transient(fmt.Errorf("delivery report timeout after %v", p.cfg.DeliveryTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) message(topic, key string, ev model.ParsedEvent, payload []byte) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(eventID(ev))},
			{Key: "kind", Value: []byte(ev.EventType)},
		},
	}
}

// eventID is stable across republishing of the same log.
func eventID(ev model.ParsedEvent) string {
	name := ev.TransactionHash + ":" + strconv.FormatUint(ev.LogIndex, 10)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

func headerValue(m *kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (p *Producer) drainEvents(ch chan kafka.Event) {
	defer close(p.drained)
	for {
		select {
		case <-p.done:
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			switch ev := e.(type) {
			case kafka.Error:
				if ev.IsFatal() || ev.Code() == kafka.ErrAllBrokersDown {
					metrics.ComponentHealthSet("kafka", false)
					p.logger.Error("kafka producer error", zap.String("code", ev.Code().String()), zap.Error(ev))
					continue
				}
				p.logger.Warn("kafka producer error", zap.String("code", ev.Code().String()), zap.Error(ev))
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					p.logger.Warn("untracked delivery failure", zap.Error(ev.TopicPartition.Error))
				}
			default:
				p.logger.Debug("kafka event", zap.String("event", e.String()))
			}
		}
	}
}

// Flush waits up to timeout for outstanding deliveries and returns how many
// are still pending.
func (p *Producer) Flush(timeout time.Duration) int {
	if p.client == nil {
		return 0
	}
	return p.client.Flush(int(timeout.Milliseconds()))
}

// Stats returns the current counters.
func (p *Producer) Stats() Stats {
	s := Stats{
		MessagesSent:   p.sent.Load(),
		MessagesFailed: p.failed.Load(),
		BytesSent:      p.bytes.Load(),
	}
	if p.client != nil {
		s.InFlight = uint64(p.client.Len())
	}
	metrics.PublisherInFlight.Set(float64(s.InFlight))
	return s
}

// IsHealthy reports false once the local backlog grows past maxInFlight.
func (p *Producer) IsHealthy() bool {
	if p.client == nil {
		return true
	}
	return p.client.Len() < maxInFlight
}

// Close flushes outstanding messages for up to timeout and releases the
// producer. It is safe to call more than once.
func (p *Producer) Close(timeout time.Duration) {
	p.closeOnce.Do(func() {
		if p.client == nil {
			return
		}
		p.logger.Info("flushing kafka producer", zap.Duration("timeout", timeout))
		if remaining := p.Flush(timeout); remaining > 0 {
			p.logger.Warn("kafka flush timed out", zap.Int("remaining", remaining))
		}
		stats := p.Stats()
		close(p.done)
		<-p.drained
		p.client.Close()
		p.logger.Info("kafka producer closed",
			zap.Uint64("messages_sent", stats.MessagesSent),
			zap.Uint64("messages_failed", stats.MessagesFailed),
			zap.Uint64("bytes_sent", stats.BytesSent),
		)
	})
}
