package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics métricas del motor de existencias. Un valor nil o sin registrar no hace nada.
type LedgerMetrics struct {
	events   *prometheus.CounterVec
	batches  *prometheus.HistogramVec
	rejected *prometheus.CounterVec
	commands *prometheus.CounterVec
}

// NewLedgerMetrics registra las métricas en el registerer dado.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_applied_total",
		Help: "Eventos del libro confirmados, por tipo.",
	}, []string{"kind"})
	batches := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_batch_duration_seconds",
		Help:    "Duración de los comandos que aplican lotes al libro.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_batches_rejected_total",
		Help: "Lotes rechazados, por motivo.",
	}, []string{"reason"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commands_total",
		Help: "Comandos de dominio ejecutados, por nombre y resultado.",
	}, []string{"command", "outcome"})
	reg.MustRegister(events, batches, rejected, commands)
	return &LedgerMetrics{
		events:   events,
		batches:  batches,
		rejected: rejected,
		commands: commands,
	}
}

// AddEvents suma n eventos confirmados del tipo kind.
func (m *LedgerMetrics) AddEvents(kind string, n int) {
	if m == nil || m.events == nil || n <= 0 {
		return
	}
	m.events.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}

// ObserveBatch registra la duración de un comando con resultado "ok" o "error".
func (m *LedgerMetrics) ObserveBatch(outcome string, d time.Duration) {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.WithLabelValues(normalizeLabel(outcome)).Observe(d.Seconds())
}

// IncRejected cuenta un lote rechazado.
func (m *LedgerMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncCommand cuenta un comando de dominio.
func (m *LedgerMetrics) IncCommand(command, outcome string) {
	if m == nil || m.commands == nil {
		return
	}
	m.commands.WithLabelValues(normalizeLabel(command), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
