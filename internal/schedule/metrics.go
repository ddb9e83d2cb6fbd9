package schedule

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveriesScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podsight",
			Name:      "deliveries_scheduled_total",
			Help:      "Delivery rows created, by channel.",
		},
		[]string{"channel"},
	)
	deliveriesCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "podsight",
			Name:      "deliveries_canceled_total",
			Help:      "Deliveries canceled while still pending.",
		},
	)
)

func init() {
	prometheus.MustRegister(deliveriesScheduled, deliveriesCanceled)
}
