package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Extraction metrics
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "announcer_extractions_total",
			Help: "Total number of announcement extractions by outcome",
		},
		[]string{"outcome"},
	)

	OracleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "announcer_oracle_duration_seconds",
			Help:    "Duration of oracle inference calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	// Normalization audit metrics
	TemporalFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "announcer_temporal_flags_total",
			Help: "Total number of normalized events flagged by the rollover heuristics",
		},
		[]string{"flag"},
	)

	// Storage metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "announcer_store_operations_total",
			Help: "Total number of event store operations",
		},
		[]string{"operation", "status"},
	)

	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "announcer_store_duration_seconds",
			Help:    "Duration of event store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Extraction cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "announcer_cache_lookups_total",
			Help: "Total number of extraction cache lookups by result",
		},
		[]string{"result"},
	)

	// Conversation buffering metrics
	DebounceFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "announcer_debounce_flushes_total",
			Help: "Total number of buffered conversation flushes by trigger",
		},
		[]string{"trigger"},
	)

	BufferedConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "announcer_buffered_conversations",
			Help: "Number of conversations currently buffering or flushing",
		},
	)

	// Messaging metrics
	PublishedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "announcer_published_messages_total",
			Help: "Total number of result messages published",
		},
		[]string{"subject", "status"},
	)
)
