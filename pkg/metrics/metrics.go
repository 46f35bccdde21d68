package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "macrame_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// TreeReorders counts reorder transactions per tree table and outcome (success|failure).
	TreeReorders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrame_tree_reorders_total",
			Help: "Total number of tree reorder operations",
		},
		[]string{"tree", "result"},
	)

	// AttachmentOps counts attach/detach operations and their outcome.
	AttachmentOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrame_attachment_operations_total",
			Help: "Total number of file attachment operations",
		},
		[]string{"op", "result"},
	)

	// RouteCache records page route table cache lookups (hit|miss).
	RouteCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "macrame_route_cache_lookups_total",
			Help: "Page route table cache lookups",
		},
		[]string{"result"},
	)

	// PagesPublished counts pages switched live by the scheduled publisher.
	PagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "macrame_pages_published_total",
			Help: "Pages published by the scheduler",
		},
	)
)

// Result maps an error to the outcome label used by the counters above.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
