// Package metrics exposes the service's Prometheus collectors. All
// collectors are registered on the default registry, Handler serves
// them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavechat_messages_sent_total",
		Help: "Number of messages accepted, by kind (room or private).",
	}, []string{"kind"})

	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wavechat_events_delivered_total",
		Help: "Number of frames written to websocket send buffers.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wavechat_events_dropped_total",
		Help: "Number of frames dropped because a send buffer was full.",
	})

	ActiveUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wavechat_active_users",
		Help: "Number of distinct users with at least one live session.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wavechat_active_sessions",
		Help: "Number of live websocket sessions.",
	})

	SweepDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wavechat_retention_deleted_total",
		Help: "Number of public messages removed by the retention sweeper.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
