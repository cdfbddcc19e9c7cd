package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics, registered once on the default registry. mockd serves them
// on /metrics.
var (
	pagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_pages_fetched_total",
			Help: "Total pages fetched, by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	itemsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedsync_items_merged_total",
			Help: "Total items merged into stores from page fetches",
		},
	)

	staleResponsesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedsync_stale_responses_dropped_total",
			Help: "Responses discarded because their generation was superseded",
		},
	)

	liveEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_live_events_applied_total",
			Help: "Push events applied to stores, by kind",
		},
		[]string{"kind"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedsync_mutations_total",
			Help: "Optimistic mutations by kind and final phase",
		},
		[]string{"kind", "phase"},
	)
)
