package manychat

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manychat_events_total",
		Help: "Webhook events by outcome.",
	}, []string{"status"})

	pointsAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manychat_points_delta_total",
		Help: "Points added to rankings by webhook events. Negative deltas are not counted.",
	})

	eventDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "manychat_event_duration_seconds",
		Help:    "Time spent handling one webhook event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(eventsTotal, pointsAwarded, eventDuration)
}
