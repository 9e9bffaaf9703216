// Package metrics exposes Prometheus counters/gauges for the transaction
// engine: SSM state transitions, retry counts, and IOCB queue depth.
// Ambient observability, not a spec feature — carried per §2.B because the
// spec's Non-goals exclude protocol features, not instrumentation.
//
// Grounded on marmos91-dittofs's use of github.com/prometheus/client_golang:
// constructor-style metric vectors registered against an injectable
// Registry (a fresh one when none is given), read by pkg/httpapi's /metrics
// handler in cmd/bacnet-device.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every counter/gauge this module exposes. A nil *Metrics
// receiver no-ops every method, so components can hold an unconditional
// *Metrics field and skip a nil check at every call site.
type Metrics struct {
	reg *prometheus.Registry

	ssmTransitions   *prometheus.CounterVec
	ssmRetries       *prometheus.CounterVec
	iocbQueueDepth   *prometheus.GaugeVec
	invokeIDsInUse   *prometheus.GaugeVec
	pduSent          *prometheus.CounterVec
	pduReceived      *prometheus.CounterVec
}

// New creates a Metrics bundle and registers every collector with reg. If
// reg is nil, prometheus.NewRegistry() is used.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reg: reg,
		ssmTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bacnet",
			Subsystem: "ssm",
			Name:      "transitions_total",
			Help:      "Segmentation state machine transitions, by role and target state.",
		}, []string{"role", "state"}),
		ssmRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bacnet",
			Subsystem: "ssm",
			Name:      "retries_total",
			Help:      "APDU/segment-ack timeout retries, by role.",
		}, []string{"role"}),
		iocbQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bacnet",
			Subsystem: "iocb",
			Name:      "queue_depth",
			Help:      "Pending IOCBs queued per destination.",
		}, []string{"destination"}),
		invokeIDsInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bacnet",
			Subsystem: "smap",
			Name:      "invoke_ids_in_use",
			Help:      "Outstanding client invoke IDs, by destination.",
		}, []string{"destination"}),
		pduSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bacnet",
			Subsystem: "transport",
			Name:      "pdu_sent_total",
			Help:      "PDUs handed to the UDP director for transmission.",
		}, []string{"function"}),
		pduReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bacnet",
			Subsystem: "transport",
			Name:      "pdu_received_total",
			Help:      "PDUs delivered up from the UDP director.",
		}, []string{"function"}),
	}
	reg.MustRegister(m.ssmTransitions, m.ssmRetries, m.iocbQueueDepth, m.invokeIDsInUse, m.pduSent, m.pduReceived)
	return m
}

// Registry returns the underlying prometheus.Registry, for wiring into an
// HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) SSMTransition(role, state string) {
	if m == nil {
		return
	}
	m.ssmTransitions.WithLabelValues(role, state).Inc()
}

func (m *Metrics) SSMRetry(role string) {
	if m == nil {
		return
	}
	m.ssmRetries.WithLabelValues(role).Inc()
}

func (m *Metrics) SetIOCBQueueDepth(destination string, depth int) {
	if m == nil {
		return
	}
	m.iocbQueueDepth.WithLabelValues(destination).Set(float64(depth))
}

func (m *Metrics) SetInvokeIDsInUse(destination string, n int) {
	if m == nil {
		return
	}
	m.invokeIDsInUse.WithLabelValues(destination).Set(float64(n))
}

func (m *Metrics) PDUSent(function string) {
	if m == nil {
		return
	}
	m.pduSent.WithLabelValues(function).Inc()
}

func (m *Metrics) PDUReceived(function string) {
	if m == nil {
		return
	}
	m.pduReceived.WithLabelValues(function).Inc()
}
