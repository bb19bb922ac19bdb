package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckCycles = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "check_cycles_total", Help: "Number of check cycles started."},
	)
	CheckCyclesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "check_cycles_failed_total", Help: "Number of check cycles that aborted with an error."},
	)
	ItemsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "items_fetched_total", Help: "Number of beatmaps fetched from the feed."},
	)
	IntentsQueued = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "intents_queued_total", Help: "Number of notification intents produced by the matcher."},
	)
	DeliveriesSent = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "deliveries_sent_total", Help: "Number of notifications delivered."},
	)
	DeliveriesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "deliveries_failed_total", Help: "Number of notification deliveries that failed."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "beatwatch", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(CheckCycles, CheckCyclesFailed, ItemsFetched, IntentsQueued, DeliveriesSent, DeliveriesFailed)
	reg.MustRegister(RateLimitAllowed, RateLimitRejected)
}
