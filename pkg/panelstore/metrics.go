package panelstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreLatency is the duration of panel store operations.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "panelstore_latency",
			Help: "Duration of panel store operations",
		},
		[]string{"operation"},
	)

	// StoreTotalRequests is the total number of panel store operations.
	StoreTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panelstore_total_requests",
			Help: "Total number of panel store operations",
		},
		[]string{"operation"},
	)
)
