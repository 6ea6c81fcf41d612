// Package metrics provides Prometheus instrumentation for the PeerFuse
// matching platform. It exposes gauges for connection and pairing counts,
// counters for search throughput, and histograms for score distribution.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerfuse_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// SearchesTotal counts match searches, labeled by outcome: "ok",
	// "no_matches", "invalid_profile", or "error".
	SearchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerfuse_searches_total",
		Help: "Total number of match searches processed",
	}, []string{"outcome"})

	// RejectionsTotal counts explicit match rejections.
	RejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerfuse_rejections_total",
		Help: "Total number of rejected match candidates",
	})

	// TopScore records the top-ranked score of each successful search.
	TopScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "peerfuse_top_match_score",
		Help:    "Top-ranked match score per successful search",
		Buckets: []float64{0, 50, 80, 100, 120, 150, 200, 300},
	})

	// SearchDuration records search handling latency in seconds, pool load
	// included.
	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "peerfuse_search_duration_seconds",
		Help:    "Match search handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// ActivePairings tracks the current number of active study pairings.
	ActivePairings = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerfuse_active_pairings",
		Help: "Current number of active study-session pairings",
	})

	// CandidatePoolSize tracks the size of the candidate pool at last search.
	CandidatePoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerfuse_candidate_pool_size",
		Help: "Number of stored profiles seen by the most recent search",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		SearchesTotal,
		RejectionsTotal,
		TopScore,
		SearchDuration,
		ActivePairings,
		CandidatePoolSize,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
