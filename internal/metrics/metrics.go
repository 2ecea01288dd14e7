// Package metrics exposes Prometheus counters for the governance layer.
// Labels carry table and action names only, never tenant identifiers or row
// data.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder holds the layer's counters. A nil *Recorder is a valid no-op so
// callers can leave metrics unwired.
type Recorder struct {
	scopeDenials *prometheus.CounterVec
	auditAppends *prometheus.CounterVec
	dualControl  *prometheus.CounterVec
}

// NewRecorder registers the counters with reg (use
// prometheus.DefaultRegisterer in binaries).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		scopeDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_scope_denials_total",
			Help: "Queries refused by the scoped access layer.",
		}, []string{"table", "reason"}),
		auditAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_audit_appends_total",
			Help: "Audit ledger append attempts by outcome.",
		}, []string{"action", "outcome"}),
		dualControl: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_dual_control_decisions_total",
			Help: "Dual-control validation decisions by outcome.",
		}, []string{"action", "outcome"}),
	}
	reg.MustRegister(r.scopeDenials, r.auditAppends, r.dualControl)
	return r
}

func (r *Recorder) ScopeDenied(table string, reason string) {
	if r == nil {
		return
	}
	r.scopeDenials.WithLabelValues(table, reason).Inc()
}

func (r *Recorder) AuditAppend(action string, outcome string) {
	if r == nil {
		return
	}
	r.auditAppends.WithLabelValues(action, outcome).Inc()
}

func (r *Recorder) DualControlDecision(action string, outcome string) {
	if r == nil {
		return
	}
	r.dualControl.WithLabelValues(action, outcome).Inc()
}
