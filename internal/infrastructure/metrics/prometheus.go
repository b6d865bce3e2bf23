package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HandlerMetrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

type ServiceMetrics struct {
	MethodCount    *prometheus.CounterVec
	MethodDuration *prometheus.HistogramVec
}

type RepositoryMetrics struct {
	QueryCount    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// MessagingMetrics tracks status-change events handed to the broker and their acks.
type MessagingMetrics struct {
	PublishCount *prometheus.CounterVec
	AckDuration  *prometheus.HistogramVec
}

// SweepMetrics tracks expiration sweep runs.
type SweepMetrics struct {
	RunCount     *prometheus.CounterVec
	ExpiredTotal prometheus.Counter
	LastRunTime  prometheus.Gauge
	RunDuration  prometheus.Histogram
}

// Registry bundles a registerer with the gatherer that serves /metrics for it.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry returns a fresh registry. Use prometheus.DefaultRegisterer paired with
// prometheus.DefaultGatherer in production.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func NewHandlerMetrics(reg Registry) *HandlerMetrics {
	requestCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handler_requests_total",
			Help: "Total number of HTTP requests handled by the handler layer.",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handler_request_duration_seconds",
			Help:    "Histogram of response latency for handler in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	reg.MustRegister(requestCount, requestDuration)

	return &HandlerMetrics{
		RequestCount:    requestCount,
		RequestDuration: requestDuration,
		gatherer:        reg,
	}
}

func NewServiceMetrics(reg prometheus.Registerer) *ServiceMetrics {
	methodCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_methods_total",
			Help: "Total number of service methods executed.",
		},
		[]string{"method", "status"},
	)

	methodDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "service_method_duration_seconds",
			Help:    "Histogram of service method execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	reg.MustRegister(methodCount, methodDuration)

	return &ServiceMetrics{
		MethodCount:    methodCount,
		MethodDuration: methodDuration,
	}
}

func NewRepositoryMetrics(reg prometheus.Registerer) *RepositoryMetrics {
	queryCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_queries_total",
			Help: "Total number of database queries executed.",
		},
		[]string{"query", "status"},
	)

	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_query_duration_seconds",
			Help:    "Histogram of database query execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query", "status"},
	)

	reg.MustRegister(queryCount, queryDuration)

	return &RepositoryMetrics{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
	}
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	publishCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_events_published_total",
			Help: "Total number of events handed to the broker, by subject and outcome.",
		},
		[]string{"subject", "status"},
	)

	ackDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_publish_ack_duration_seconds",
			Help:    "Time between an async publish and its broker acknowledgement.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject", "status"},
	)

	reg.MustRegister(publishCount, ackDuration)

	return &MessagingMetrics{
		PublishCount: publishCount,
		AckDuration:  ackDuration,
	}
}

func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	runCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiration_sweep_runs_total",
			Help: "Total number of expiration sweep runs.",
		},
		[]string{"status"},
	)

	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "expiration_sweep_listings_expired_total",
		Help: "Total number of listings moved to the expired status.",
	})

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "expiration_sweep_last_run_timestamp_seconds",
		Help: "Unix time of the last successful sweep.",
	})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "expiration_sweep_duration_seconds",
		Help:    "Histogram of expiration sweep duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(runCount, expired, lastRun, duration)

	return &SweepMetrics{
		RunCount:     runCount,
		ExpiredTotal: expired,
		LastRunTime:  lastRun,
		RunDuration:  duration,
	}
}

func (hm *HandlerMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})
}
