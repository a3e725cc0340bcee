/*
Package metrics provides Prometheus metrics collection and exposition for
fleetctl.

The metrics package defines and registers all fleetctl metrics using the
Prometheus client library, giving visibility into fleet size, queue depth,
autoscaler decisions, dispatch outcomes, and deployment duration. Metrics
are exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (queue length)       │          │
	│  │  Counter: Monotonic increases (requests)    │          │
	│  │  Histogram: Distributions (latency)         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Fleet: Replica count, queue, autoscaler    │          │
	│  │  API: Request count, duration               │          │
	│  │  Dispatch: Outcome count, latency            │          │
	│  │  Deployment: Duration by stage, add/remove  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Fleet metrics:

	fleetctl_replicas_total{cluster_id, status}
	  - Gauge
	  - Raised by one per cluster for each replica added (status "running")
	    and for each replica retired (status "dead"); it is never lowered

	fleetctl_queue_length
	  - Gauge
	  - Pending items in the request queue (C6)

	fleetctl_autoscaler_load
	  - Gauge
	  - Most recently computed load value (queue_length / replicas)

	fleetctl_autoscaler_actions_total{direction}
	  - Counter
	  - Scaling actions taken, labeled "up" or "down"

API metrics:

	fleetctl_api_requests_total{method, status}
	fleetctl_api_request_duration_seconds{method}

Dispatch metrics:

	fleetctl_dispatched_total{outcome}
	fleetctl_dispatch_latency_seconds

Deployment metrics:

	fleetctl_deployments_total{status}
	fleetctl_deployment_duration_seconds{stage}
	fleetctl_replicas_added_total
	fleetctl_replicas_removed_total
	fleetctl_replica_add_failures_total

# Usage

	import "github.com/sahil-03/fleetctl/pkg/metrics"

	metrics.QueueLength.Set(float64(queue.Length()))

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDurationVec(metrics.DeploymentDuration, "packaging")

	http.Handle("/metrics", metrics.Handler())

# Useful Queries

  - Fleet size: sum(fleetctl_replicas_total{status="running"}) - sum(fleetctl_replicas_total{status="dead"})
  - Queue backlog: fleetctl_queue_length
  - Scale events per hour: rate(fleetctl_autoscaler_actions_total[1h])
  - API p95 latency: histogram_quantile(0.95, fleetctl_api_request_duration_seconds_bucket)
  - Dispatch failure rate: rate(fleetctl_dispatched_total{outcome="retry"}[5m])
  - Deployment failure rate: rate(fleetctl_deployments_total{status="failure"}[5m])
*/
package metrics
