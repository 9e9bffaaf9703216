package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSSMTransitionIncrementsCounter(t *testing.T) {
	m := New(nil)
	m.SSMTransition("client", "AWAIT_CONFIRMATION")
	m.SSMTransition("client", "AWAIT_CONFIRMATION")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ssmTransitions.WithLabelValues("client", "AWAIT_CONFIRMATION")))
}

func TestQueueDepthGaugeReflectsLastSet(t *testing.T) {
	m := New(nil)
	m.SetIOCBQueueDepth("192.168.1.5", 3)
	m.SetIOCBQueueDepth("192.168.1.5", 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.iocbQueueDepth.WithLabelValues("192.168.1.5")))
}

func TestNilMetricsNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SSMTransition("client", "IDLE")
		m.SSMRetry("server")
		m.SetIOCBQueueDepth("x", 1)
		m.SetInvokeIDsInUse("x", 1)
		m.PDUSent("whois")
		m.PDUReceived("iam")
		_ = m.Registry()
	})
}
