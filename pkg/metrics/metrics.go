package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	ReplicasTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetctl_replicas_total",
			Help: "Total number of replicas by cluster and status",
		},
		[]string{"cluster_id", "status"},
	)

	QueueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetctl_queue_length",
			Help: "Current number of pending items in the request queue",
		},
	)

	AutoscalerLoad = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetctl_autoscaler_load",
			Help: "Most recently computed load value (queue_length / replicas)",
		},
	)

	AutoscalerActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_autoscaler_actions_total",
			Help: "Total number of scaling actions taken by direction",
		},
		[]string{"direction"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetctl_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Dispatch metrics
	DispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_dispatched_total",
			Help: "Total number of dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetctl_dispatch_latency_seconds",
			Help:    "Time taken for a dispatcher to deliver a request to a replica",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Deployment metrics
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetctl_deployments_total",
			Help: "Total number of deployment executions by status",
		},
		[]string{"status"},
	)

	DeploymentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetctl_deployment_duration_seconds",
			Help:    "Deployment duration in seconds by stage",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	ReplicasAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetctl_replicas_added_total",
			Help: "Total number of replicas successfully added",
		},
	)

	ReplicasRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetctl_replicas_removed_total",
			Help: "Total number of replicas removed",
		},
	)

	ReplicaAddFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetctl_replica_add_failures_total",
			Help: "Total number of failed replica additions",
		},
	)
)

func init() {
	prometheus.MustRegister(ReplicasTotal)
	prometheus.MustRegister(QueueLength)
	prometheus.MustRegister(AutoscalerLoad)
	prometheus.MustRegister(AutoscalerActionsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(DispatchedTotal)
	prometheus.MustRegister(DispatchLatency)
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(DeploymentDuration)
	prometheus.MustRegister(ReplicasAddedTotal)
	prometheus.MustRegister(ReplicasRemovedTotal)
	prometheus.MustRegister(ReplicaAddFailuresTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
