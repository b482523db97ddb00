// Package metrics provides Prometheus metrics for monitoring ingestion runs.
//
// Key metrics:
//   - API request counts and latencies per endpoint
//   - Rate limiter wait counts by reason
//   - Pages fetched per paginated resource
//   - Rows written per entity class
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts API requests by endpoint label and status code.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t212_api_requests_total",
		Help: "Total Trading 212 API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	// APIRequestDuration observes request latency per endpoint label.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "t212_api_request_duration_seconds",
		Help:    "Trading 212 API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	// RateLimitWaitsTotal counts rate limiter sleeps by reason.
	RateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t212_rate_limit_waits_total",
		Help: "Total rate limiter waits by reason",
	}, []string{"reason"})

	// RateLimitRemaining tracks the last observed remaining quota per endpoint.
	RateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "t212_rate_limit_remaining",
		Help: "Remaining requests in the current rate limit window by endpoint",
	}, []string{"endpoint"})

	// PagesFetchedTotal counts pages fetched per paginated resource.
	PagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t212_pages_fetched_total",
		Help: "Total pages fetched by paginated resource",
	}, []string{"resource"})

	// PaginationStopsTotal counts pagination terminations by cause.
	PaginationStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t212_pagination_stops_total",
		Help: "Total pagination terminations by cause",
	}, []string{"resource", "cause"})

	// RowsWrittenTotal counts curated rows written per entity class.
	RowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t212_rows_written_total",
		Help: "Total curated rows written by entity class",
	}, []string{"entity"})

	// IngestRunsTotal counts ingestion runs by outcome.
	IngestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t212_ingest_runs_total",
		Help: "Total ingestion runs by outcome",
	}, []string{"outcome"})
)
