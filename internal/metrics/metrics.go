package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgdl_batches_created_total",
		Help: "Total number of batches submitted",
	})

	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgdl_tasks_created_total",
		Help: "Total number of tasks created",
	})

	TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgdl_task_transitions_total",
		Help: "Task state transitions by target status",
	}, []string{"status"})

	StateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgdl_state_denials_total",
		Help: "Denied task/batch operations by operation",
	}, []string{"operation"})

	BatchesTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgdl_batches_terminal_total",
		Help: "Batches that reached a terminal status",
	}, []string{"status"})

	DeliveryMethods = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgdl_delivery_methods_total",
		Help: "Delivery methods chosen for terminal batches",
	}, []string{"method"})

	DeliveryFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgdl_delivery_fallbacks_total",
		Help: "Collection deliveries that fell back to individual links",
	})

	CDNRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgdl_cdn_requests_total",
		Help: "CDN requests by operation and outcome",
	}, []string{"operation", "outcome"})

	CDNRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tgdl_cdn_request_duration_seconds",
		Help:    "CDN request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	FileInfoCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgdl_file_info_cache_hits_total",
		Help: "File info lookups served from cache",
	})

	TokenMints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgdl_token_mints_total",
		Help: "Delegated token mints by outcome",
	}, []string{"outcome"})

	TokenCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgdl_token_cache_hits_total",
		Help: "Delegated token requests served from cache",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgdl_analytics_events_dropped_total",
		Help: "Analytics events dropped because the buffer was full",
	})

	AggregatesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgdl_aggregates_expired_total",
		Help: "Terminal batches and tasks removed after their retention window",
	})
)
