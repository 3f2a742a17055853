package metrics

import "github.com/prometheus/client_golang/prometheus"

// CoordinationMetrics exposes counters/gauges for the slot and queue engine.
type CoordinationMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	queueJoinsTotal    *prometheus.CounterVec
	queueAdvancesTotal *prometheus.CounterVec
	eventsTotal        *prometheus.CounterVec
	subscribers        prometheus.Gauge
}

func NewCoordinationMetrics(reg prometheus.Registerer) *CoordinationMetrics {
	m := &CoordinationMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotqueue",
			Subsystem: "engine",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"status"}),
		queueJoinsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotqueue",
			Subsystem: "engine",
			Name:      "queue_joins_total",
			Help:      "Queue join attempts by outcome",
		}, []string{"status"}),
		queueAdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotqueue",
			Subsystem: "engine",
			Name:      "queue_advances_total",
			Help:      "Queue status transitions by outcome",
		}, []string{"status"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotqueue",
			Subsystem: "notify",
			Name:      "events_published_total",
			Help:      "State change events published by kind",
		}, []string{"kind"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slotqueue",
			Subsystem: "notify",
			Name:      "subscribers",
			Help:      "Currently connected push subscribers",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.queueJoinsTotal, m.queueAdvancesTotal, m.eventsTotal, m.subscribers)
	return m
}

func (m *CoordinationMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *CoordinationMetrics) ObserveQueueJoin(status string) {
	if m == nil {
		return
	}
	m.queueJoinsTotal.WithLabelValues(status).Inc()
}

func (m *CoordinationMetrics) ObserveQueueAdvance(status string) {
	if m == nil {
		return
	}
	m.queueAdvancesTotal.WithLabelValues(status).Inc()
}

func (m *CoordinationMetrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *CoordinationMetrics) SubscriberConnected() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *CoordinationMetrics) SubscriberDisconnected() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}
