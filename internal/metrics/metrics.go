// Package metrics exposes Prometheus collectors for the moderation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Decision sources.
const (
	SourcePrivate     = "private"
	SourceChannelPost = "channel_post"
)

// Verdict and result label values.
const (
	VerdictApproved = "approved"
	VerdictRejected = "rejected"

	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics bundles the collectors. A nil *Metrics is valid and records nothing,
// so components can be built without a registry in tests.
type Metrics struct {
	decisions     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	deletions     *prometheus.CounterVec
	copies        *prometheus.CounterVec
}

// New registers the fabot collectors on reg. pending, when non-nil, backs the
// buffered media group gauge.
func New(reg prometheus.Registerer, pending func() int) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabot",
			Name:      "decisions_total",
			Help:      "Compliance decisions by message source and verdict.",
		}, []string{"source", "verdict"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabot",
			Name:      "notifications_total",
			Help:      "Rejection notifications by delivery result.",
		}, []string{"result"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabot",
			Name:      "deletions_total",
			Help:      "Deletions of non-compliant channel posts by result.",
		}, []string{"result"}),
		copies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabot",
			Name:      "channel_copies_total",
			Help:      "Copies of approved private messages into the channel by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.decisions, m.notifications, m.deletions, m.copies)

	if pending != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fabot",
			Name:      "media_groups_pending",
			Help:      "Media groups currently held by the coordinator.",
		}, func() float64 { return float64(pending()) }))
	}

	return m
}

// Decision records one compliance verdict.
func (m *Metrics) Decision(source string, approved bool) {
	if m == nil {
		return
	}
	verdict := VerdictRejected
	if approved {
		verdict = VerdictApproved
	}
	m.decisions.WithLabelValues(source, verdict).Inc()
}

// Notifications records the outcome of a rejection fan-out.
func (m *Metrics) Notifications(successful, failed int) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(ResultOK).Add(float64(successful))
	m.notifications.WithLabelValues(ResultFailed).Add(float64(failed))
}

// Deletion records one delete call against the channel.
func (m *Metrics) Deletion(err error) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(result(err)).Inc()
}

// Copy records one copy of approved content into the channel.
func (m *Metrics) Copy(err error) {
	if m == nil {
		return
	}
	m.copies.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}
