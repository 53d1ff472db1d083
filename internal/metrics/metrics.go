package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/phantom-eng/bytefood-web/internal/core/service"
)

// Metrics counts what happens to carts and checkouts.
type Metrics struct {
	CartMutations *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	Notices       *prometheus.CounterVec
	Sent          prometheus.Counter
	Deliveries    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bytefood",
			Name:      "cart_mutations_total",
			Help:      "Cart changes by operation.",
		}, []string{"op"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bytefood",
			Name:      "checkout_transitions_total",
			Help:      "Checkout state transitions by target state.",
		}, []string{"to"}),
		Notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bytefood",
			Name:      "rejections_total",
			Help:      "Rejected operations by operation.",
		}, []string{"op"}),
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bytefood",
			Name:      "orders_sent_total",
			Help:      "Orders handed to the outbound channel.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bytefood",
			Name:      "deliveries_total",
			Help:      "Outbound deliveries by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.CartMutations, m.Transitions, m.Notices, m.Sent, m.Deliveries)
	return m
}

// Observe is a service.Subscriber.
func (m *Metrics) Observe(e service.Event) {
	switch e.Kind {
	case service.EventCartChanged:
		m.CartMutations.WithLabelValues(e.Op).Inc()
	case service.EventStateChanged:
		m.Transitions.WithLabelValues(e.State.String()).Inc()
	case service.EventNotice:
		if e.Err != nil {
			m.Notices.WithLabelValues(e.Op).Inc()
		}
	case service.EventSent:
		m.Sent.Inc()
	}
}

func (m *Metrics) ObserveDelivery(err error) {
	if err != nil {
		m.Deliveries.WithLabelValues("failed").Inc()
		return
	}
	m.Deliveries.WithLabelValues("ok").Inc()
}
