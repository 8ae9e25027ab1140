package publisher

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theragraph/internal/events"
	"theragraph/internal/model"
)

type fakeClient struct {
	mu          sync.Mutex
	produced    []*kafka.Message
	produceErrs []error
	deliveries  []error
	noReport    bool
	queued      int
	flushedWith int
	closed      bool
	events      chan kafka.Event
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan kafka.Event, 8)}
}

func (f *fakeClient) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	f.mu.Lock()
	if len(f.produceErrs) > 0 {
		err := f.produceErrs[0]
		f.produceErrs = f.produceErrs[1:]
		if err != nil {
			f.mu.Unlock()
			return err
		}
	}
	f.produced = append(f.produced, msg)
	var deliveryErr error
	if len(f.deliveries) > 0 {
		deliveryErr = f.deliveries[0]
		f.deliveries = f.deliveries[1:]
	}
	noReport := f.noReport
	f.mu.Unlock()

	if noReport {
		return nil
	}
	report := *msg
	report.TopicPartition.Error = deliveryErr
	go func() { deliveryChan <- &report }()
	return nil
}

func (f *fakeClient) Events() chan kafka.Event { return f.events }

func (f *fakeClient) Flush(timeoutMs int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushedWith = timeoutMs
	return 0
}

func (f *fakeClient) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queued
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeClient) producedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.produced)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SendBackoff = time.Millisecond
	cfg.DeliveryTimeout = time.Second
	return cfg
}

func followEvent() model.ParsedEvent {
	return model.ParsedEvent{
		EventType:       "UserFollowed",
		ContractAddress: "0xabc",
		ContractType:    "friends",
		BlockNumber:     10,
		TransactionHash: "0x01",
		LogIndex:        2,
		Kind:            events.UserFollowed,
	}
}

func header(m *kafka.Message, key string) string {
	return headerValue(m, key)
}

func TestNoopProducer(t *testing.T) {
	p := NewNoop(testConfig(), nil)

	require.NoError(t, p.Publish(context.Background(), followEvent()))
	require.NoError(t, p.SendBatch(context.Background(), "t", []Message{{Key: "k", Event: followEvent()}}))
	assert.False(t, p.Enabled())
	assert.True(t, p.IsHealthy())
	assert.Equal(t, 0, p.Flush(time.Second))
	assert.Equal(t, Stats{}, p.Stats())
	p.Close(time.Second)
}

func TestPublishRoutesAndKeys(t *testing.T) {
	fc := newFakeClient()
	p := newProducer(testConfig(), fc, nil)
	defer p.Close(time.Second)

	social := followEvent()
	raw := model.ParsedEvent{
		EventType:       "Transfer",
		ContractAddress: "0xdef",
		ContractType:    "common",
		TransactionHash: "0x02",
		Kind:            events.Transfer,
	}
	unknown := model.ParsedEvent{EventType: "Unknown", ContractAddress: "0xdef", ContractType: "friends", Kind: events.Unknown}

	require.NoError(t, p.Publish(context.Background(), social))
	require.NoError(t, p.Publish(context.Background(), raw))
	require.NoError(t, p.Publish(context.Background(), unknown))
	require.Equal(t, 3, fc.producedCount())

	first := fc.produced[0]
	assert.Equal(t, "user.actions", *first.TopicPartition.Topic)
	assert.Equal(t, "friends.0xabc", string(first.Key))
	assert.Equal(t, "UserFollowed", header(first, "kind"))
	assert.Equal(t, eventID(social), header(first, "event-id"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(first.Value, &decoded))
	assert.Equal(t, "UserFollowed", decoded["event_type"])

	assert.Equal(t, "blockchain.events", *fc.produced[1].TopicPartition.Topic)
	assert.Equal(t, "common.0xdef", string(fc.produced[1].Key))
	assert.Equal(t, "blockchain.events", *fc.produced[2].TopicPartition.Topic)

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.MessagesSent)
	assert.Equal(t, uint64(0), stats.MessagesFailed)
	assert.Greater(t, stats.BytesSent, uint64(0))
}

func TestPublishKeysByContractNotKind(t *testing.T) {
	fc := newFakeClient()
	p := newProducer(testConfig(), fc, nil)
	defer p.Close(time.Second)

	base := model.ParsedEvent{ContractAddress: "0xabc", SourceType: "friends"}
	mint, like, purchase := base, base, base
	mint.EventType, mint.ContractType, mint.Kind, mint.TransactionHash = "ContentMinted", "snap", events.ContentMinted, "0x01"
	like.EventType, like.ContractType, like.Kind, like.TransactionHash = "ContentLiked", "friends", events.ContentLiked, "0x02"
	purchase.EventType, purchase.ContractType, purchase.Kind, purchase.TransactionHash = "PurchaseProcessed", "common", events.PurchaseProcessed, "0x03"

	for _, ev := range []model.ParsedEvent{mint, like, purchase} {
		require.NoError(t, p.Publish(context.Background(), ev))
	}
	require.Equal(t, 3, fc.producedCount())
	for _, msg := range fc.produced {
		assert.Equal(t, "friends.0xabc", string(msg.Key))
	}
}

func TestEventIDIsStable(t *testing.T) {
	ev := followEvent()
	again := followEvent()
	again.Timestamp = 999
	assert.Equal(t, eventID(ev), eventID(again))

	other := followEvent()
	other.LogIndex = 3
	assert.NotEqual(t, eventID(ev), eventID(other))
}

func TestSendRetriesTransientDeliveryFailure(t *testing.T) {
	fc := newFakeClient()
	fc.deliveries = []error{kafka.NewError(kafka.ErrMsgTimedOut, "Local: Message timed out", false), nil}
	fc.produceErrs = []error{kafka.NewError(kafka.ErrQueueFull, "Local: Queue full", false)}
	p := newProducer(testConfig(), fc, nil)
	defer p.Close(time.Second)

	require.NoError(t, p.Send(context.Background(), "user.actions", "k", followEvent()))
	assert.Equal(t, 2, fc.producedCount())
	assert.Equal(t, uint64(1), p.Stats().MessagesSent)
}

func TestSendStopsOnPermanentFailure(t *testing.T) {
	fc := newFakeClient()
	fc.deliveries = []error{kafka.NewError(kafka.ErrMsgSizeTooLarge, "Broker: Message size too large", false)}
	p := newProducer(testConfig(), fc, nil)
	defer p.Close(time.Second)

	err := p.Send(context.Background(), "user.actions", "k", followEvent())
	require.Error(t, err)
	assert.Equal(t, 1, fc.producedCount())
	assert.Equal(t, uint64(1), p.Stats().MessagesFailed)
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	fc := newFakeClient()
	timedOut := kafka.NewError(kafka.ErrMsgTimedOut, "Local: Message timed out", false)
	fc.deliveries = []error{timedOut, timedOut, timedOut, timedOut}
	cfg := testConfig()
	cfg.SendMaxAttempts = 3
	p := newProducer(cfg, fc, nil)
	defer p.Close(time.Second)

	err := p.Send(context.Background(), "user.actions", "k", followEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, 3, fc.producedCount())
}

func TestSendDeliveryTimeout(t *testing.T) {
	fc := newFakeClient()
	fc.noReport = true
	cfg := testConfig()
	cfg.SendMaxAttempts = 1
	cfg.DeliveryTimeout = 20 * time.Millisecond
	p := newProducer(cfg, fc, nil)
	defer p.Close(time.Second)

	err := p.Send(context.Background(), "user.actions", "k", followEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery report timeout")
}

func TestSendBatch(t *testing.T) {
	fc := newFakeClient()
	fc.deliveries = []error{nil, kafka.NewError(kafka.ErrMsgSizeTooLarge, "Broker: Message size too large", false), nil}
	p := newProducer(testConfig(), fc, nil)
	defer p.Close(time.Second)

	msgs := make([]Message, 0, 3)
	for i := uint64(0); i < 3; i++ {
		ev := followEvent()
		ev.LogIndex = i
		msgs = append(msgs, Message{Key: "friends.0xabc", Event: ev})
	}

	err := p.SendBatch(context.Background(), "user.actions", msgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 messages failed to deliver")

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.MessagesSent)
	assert.Equal(t, uint64(1), stats.MessagesFailed)
	assert.Equal(t, 3, fc.producedCount())
}

func TestIsHealthyTracksBacklog(t *testing.T) {
	fc := newFakeClient()
	p := newProducer(testConfig(), fc, nil)
	defer p.Close(time.Second)

	assert.True(t, p.IsHealthy())
	fc.mu.Lock()
	fc.queued = maxInFlight
	fc.mu.Unlock()
	assert.False(t, p.IsHealthy())
	assert.Equal(t, uint64(maxInFlight), p.Stats().InFlight)
}

func TestCloseFlushesOnce(t *testing.T) {
	fc := newFakeClient()
	p := newProducer(testConfig(), fc, nil)

	fc.events <- kafka.NewError(kafka.ErrTransport, "broker down", false)
	p.Close(2 * time.Second)
	p.Close(2 * time.Second)

	assert.True(t, fc.closed)
	assert.Equal(t, 2000, fc.flushedWith)
}

func TestConfigMap(t *testing.T) {
	cm := ConfigMap(DefaultConfig())

	get := func(key string) kafka.ConfigValue {
		v, err := cm.Get(key, nil)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "kafka:29092", get("bootstrap.servers"))
	assert.Equal(t, "all", get("acks"))
	assert.Equal(t, true, get("enable.idempotence"))
	assert.Equal(t, "lz4", get("compression.type"))
	assert.Equal(t, 5, get("linger.ms"))
	assert.Equal(t, 5000, get("message.timeout.ms"))
	assert.Equal(t, 20*1024*1024, get("message.max.bytes"))
}

func TestTopicFor(t *testing.T) {
	cfg := Config{TopicUserActions: "ua", TopicBlockchainEvents: "be"}
	assert.Equal(t, "ua", cfg.TopicFor(events.ContentShared))
	assert.Equal(t, "be", cfg.TopicFor(events.ContentMinted))
	assert.Equal(t, "be", cfg.TopicFor(events.Unknown))
	assert.Equal(t, events.TopicUserActions, Config{}.TopicFor(events.UserFollowed))
}
