package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Indexing metrics
	LastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "theragraph_last_indexed_block",
			Help: "The last block number checkpointed by an indexer",
		},
		[]string{"indexer"},
	)

	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"indexer"},
	)

	LogsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_logs_processed_total",
			Help: "Total number of logs parsed",
		},
		[]string{"indexer", "event_type"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "theragraph_batch_duration_seconds",
			Help:    "Time taken to fetch, publish and checkpoint one block range",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"indexer"},
	)

	PollerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "theragraph_poller_state",
			Help: "Current poller state (0=idle 1=fetching_height 2=fetching_logs 3=processing 4=checkpointing 5=shutting_down)",
		},
		[]string{"indexer"},
	)

	DecodeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_decode_fallbacks_total",
			Help: "Payloads that could not be decoded and were kept as raw hex",
		},
		[]string{"event_type"},
	)

	// Publisher metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_events_published_total",
			Help: "Events acknowledged by the message bus",
		},
		[]string{"topic"},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_publish_failures_total",
			Help: "Events that could not be delivered after all attempts",
		},
		[]string{"indexer"},
	)

	PublisherInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "theragraph_publisher_in_flight",
			Help: "Messages produced but not yet acknowledged",
		},
	)

	// Retry metrics
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_retries_total",
			Help: "Retried attempts by operation",
		},
		[]string{"operation"},
	)

	// Checkpoint metrics
	CheckpointWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_checkpoint_writes_total",
			Help: "Checkpoint upserts by backend",
		},
		[]string{"driver"},
	)

	CheckpointErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theragraph_checkpoint_errors_total",
			Help: "Failed checkpoint reads and writes by backend",
		},
		[]string{"driver", "operation"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "theragraph_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "theragraph_goroutines",
			Help: "Number of active goroutines",
		},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "theragraph_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	startTime = time.Now()
)

func RetryInc(operation string) {
	Retries.WithLabelValues(operation).Inc()
}

func DecodeFallbackInc(eventType string) {
	DecodeFallbacks.WithLabelValues(eventType).Inc()
}

func LogProcessedInc(indexer, eventType string) {
	LogsProcessed.WithLabelValues(indexer, eventType).Inc()
}

func PublishFailureInc(indexer string) {
	PublishFailures.WithLabelValues(indexer).Inc()
}

func EventPublishedInc(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

func BatchDurationLog(indexer string, duration time.Duration) {
	BatchDuration.WithLabelValues(indexer).Observe(duration.Seconds())
}

func LastIndexedBlockSet(indexer string, block uint64) {
	LastIndexedBlock.WithLabelValues(indexer).Set(float64(block))
}

func BlocksProcessedAdd(indexer string, count uint64) {
	BlocksProcessed.WithLabelValues(indexer).Add(float64(count))
}

func PollerStateSet(indexer string, state int) {
	PollerState.WithLabelValues(indexer).Set(float64(state))
}

func CheckpointWriteInc(driver string) {
	CheckpointWrites.WithLabelValues(driver).Inc()
}

func CheckpointErrorInc(driver, operation string) {
	CheckpointErrors.WithLabelValues(driver, operation).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}
	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics refreshes uptime and goroutine count.
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())
	Goroutines.Set(float64(runtime.NumGoroutine()))
}
