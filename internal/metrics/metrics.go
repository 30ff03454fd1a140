package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "number of successful order status transitions",
		},
		[]string{"status"},
	)
	NotificationsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "number of notifications handed to the hub",
		},
	)
)

// Init registers the collectors. listenerCount is sampled on scrape.
func Init(listenerCount func() int) {
	prometheus.MustRegister(OrderTransitions, NotificationsPublished)
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "event_listeners_registered",
			Help: "number of live event listeners",
		},
		func() float64 { return float64(listenerCount()) },
	))
}
