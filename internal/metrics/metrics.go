// Package metrics holds the Prometheus collectors shared by the relay components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blink_relay"

// Outcome labels
const (
	OutcomeNotified  = "notified"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"

	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeDisabled = "disabled"

	OutcomeBaseline = "baseline"
	OutcomeDeposit  = "deposit"
	OutcomeNoChange = "unchanged"
	OutcomeError    = "error"
)

// Metrics groups the relay collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	WebhookEvents   *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	WatcherPolls    *prometheus.CounterVec
	DepositSats     *prometheus.CounterVec
	FundedWatermark prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound Blink webhook deliveries by outcome.",
		}, []string{"outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound Discord notifications by outcome.",
		}, []string{"outcome"}),
		WatcherPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_polls_total",
			Help:      "Explorer polls by outcome.",
		}, []string{"outcome"}),
		DepositSats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_sats_total",
			Help:      "Deposited sats that produced a notification, by payment kind.",
		}, []string{"kind"}),
		FundedWatermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_funded_sats",
			Help:      "Last observed funded sum of the watched address.",
		}),
	}

	reg.MustRegister(m.WebhookEvents, m.Notifications, m.WatcherPolls, m.DepositSats, m.FundedWatermark)
	return m
}

// Webhook counts one inbound delivery
func (m *Metrics) Webhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(outcome).Inc()
}

// Notification counts one dispatch attempt
func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

// Poll counts one watcher tick
func (m *Metrics) Poll(outcome string) {
	if m == nil {
		return
	}
	m.WatcherPolls.WithLabelValues(outcome).Inc()
}

// Deposit adds a notified amount
func (m *Metrics) Deposit(kind string, sats int64) {
	if m == nil {
		return
	}
	m.DepositSats.WithLabelValues(kind).Add(float64(sats))
}

// Watermark records the watcher watermark
func (m *Metrics) Watermark(sats int64) {
	if m == nil {
		return
	}
	m.FundedWatermark.Set(float64(sats))
}
