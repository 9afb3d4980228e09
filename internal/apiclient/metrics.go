package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Total marketplace API calls by path and status.",
		},
		[]string{"path", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "Marketplace API call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	tokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_token_refresh_total",
			Help: "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	apiRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_api_retries_total",
			Help: "Requests reissued after a token refresh.",
		},
	)
)

// Refresh outcomes.
const (
	refreshSuccess = "success"
	refreshFailed  = "failed"
	refreshNoToken = "no_token"
)
