package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts check-in sessions created by facilitators.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkin_sessions_created_total",
		Help: "Number of check-in sessions created.",
	})

	// Admitted counts successful admissions by classified status.
	Admitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_admitted_total",
		Help: "Number of admitted check-ins by status.",
	}, []string{"status"})

	// Rejected counts rejected scan attempts by reason.
	Rejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_rejected_total",
		Help: "Number of rejected check-in attempts by reason.",
	}, []string{"reason"})

	// FeedSubscribers tracks currently connected live-feed subscribers.
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkin_feed_subscribers",
		Help: "Currently connected live feed subscribers.",
	})
)
