package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Metrics holds the Prometheus collectors for scrape runs and the outbox relay.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ItemsTotal         *prometheus.CounterVec
	ImagesTotal        *prometheus.CounterVec
	EventsRelayedTotal prometheus.Counter
	RelayFailuresTotal prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "The total number of product pages processed, by outcome",
		}, []string{"status"}),
		ImagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_images_total",
			Help: "The total number of product images downloaded, by outcome",
		}, []string{"status"}),
		EventsRelayedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_relayed_total",
			Help: "The total number of outbox events published to the stream",
		}),
		RelayFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbox_relay_failures_total",
			Help: "The total number of failed attempts to publish an outbox event",
		}),
	}
}

func (m *Metrics) IncItem(succeeded bool) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(status(succeeded)).Inc()
}

func (m *Metrics) IncImage(succeeded bool) {
	if m == nil {
		return
	}
	m.ImagesTotal.WithLabelValues(status(succeeded)).Inc()
}

func (m *Metrics) IncEventsRelayed() {
	if m == nil {
		return
	}
	m.EventsRelayedTotal.Inc()
}

func (m *Metrics) IncRelayFailures() {
	if m == nil {
		return
	}
	m.RelayFailuresTotal.Inc()
}

func status(succeeded bool) string {
	if succeeded {
		return StatusSucceeded
	}
	return StatusFailed
}
