// Package metrics defines the Prometheus metrics exported by hlslocalizer.
// All metric names are prefixed with "hlslocalizer_".
package metrics

import (
	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlslocalizer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hlslocalizer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Parsing metrics
var (
	AttributeListsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlslocalizer_attribute_lists_parsed_total",
			Help: "Total number of attribute-list lines parsed, by tag prefix",
		},
		[]string{"tag"},
	)

	IdentifiersComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hlslocalizer_identifiers_computed_total",
			Help: "Total number of identifiers computed",
		},
	)
)

// Planning metrics
var (
	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlslocalizer_plans_total",
			Help: "Total number of download plans built, by result",
		},
		[]string{"result"},
	)

	PlanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hlslocalizer_plan_duration_seconds",
			Help:    "Time spent fetching playlists and building a plan",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	TasksPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hlslocalizer_tasks_planned_total",
			Help: "Total number of download tasks planned, by type",
		},
		[]string{"type"},
	)

	TasksCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hlslocalizer_tasks_completed_total",
			Help: "Total number of download tasks reported complete",
		},
	)
)

// Registry metrics
var (
	ItemsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hlslocalizer_items",
			Help: "Number of registered download items, by state",
		},
		[]string{"state"},
	)

	ClusterLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hlslocalizer_cluster_leader",
			Help: "1 if this node is the Raft leader, 0 otherwise",
		},
	)
)

// ObserveItems sets ItemsByState from a full item listing.
func ObserveItems(items []registry.Item) {
	counts := map[registry.State]int{
		registry.StateNew:            0,
		registry.StateMetadataLoaded: 0,
		registry.StateInProgress:     0,
		registry.StatePaused:         0,
		registry.StateCompleted:      0,
		registry.StateFailed:         0,
		registry.StateRemoved:        0,
	}
	for _, item := range items {
		counts[item.State]++
	}
	for state, n := range counts {
		ItemsByState.WithLabelValues(string(state)).Set(float64(n))
	}
}

// ObserveLeader records whether this node leads the cluster.
func ObserveLeader(leader bool) {
	if leader {
		ClusterLeader.Set(1)
		return
	}
	ClusterLeader.Set(0)
}
