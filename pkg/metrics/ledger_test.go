package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetrics_Exports(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.AddEvents("SALE", 3)
	m.AddEvents("SALE", 0)
	m.IncRejected("insufficient_stock")
	m.IncCommand("checkout", "ok")
	m.ObserveBatch("ok", 20*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 3.0, counterValue(t, mfs, "ledger_events_applied_total", "kind", "SALE"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "ledger_batches_rejected_total", "reason", "insufficient_stock"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "ledger_commands_total", "command", "checkout"))

	mf := findFamily(mfs, "ledger_batch_duration_seconds")
	require.NotNil(t, mf)
	assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestLedgerMetrics_NilSafe(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.AddEvents("SALE", 1)
		m.IncRejected("x")
		m.IncCommand("c", "ok")
		m.ObserveBatch("ok", time.Second)
	})
	unregistered := NewLedgerMetrics(nil)
	assert.NotPanics(t, func() { unregistered.AddEvents("SALE", 1) })
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) float64 {
	t.Helper()
	mf := findFamily(mfs, name)
	require.NotNil(t, mf, "métrica %s", name)
	for _, metric := range mf.GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("métrica %s sin etiqueta %s=%s", name, label, value)
	return 0
}

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}
