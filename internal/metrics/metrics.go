package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrdersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "orders_created_total",
			Help:      "Gateway orders created, by outcome (created|reused|failed)",
		},
		[]string{"outcome"},
	)

	RefundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "refunds_total",
			Help:      "Refund requests, by outcome (requested|reused|failed)",
		},
		[]string{"outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "webhook_events_total",
			Help:      "Webhook events received, by type and outcome (applied|deduped|skipped|failed)",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(OrdersCreatedTotal, RefundsTotal, WebhookEventsTotal)
}

func IncOrder(outcome string)           { OrdersCreatedTotal.WithLabelValues(outcome).Inc() }
func IncRefund(outcome string)          { RefundsTotal.WithLabelValues(outcome).Inc() }
func IncWebhook(evType, outcome string) { WebhookEventsTotal.WithLabelValues(evType, outcome).Inc() }
