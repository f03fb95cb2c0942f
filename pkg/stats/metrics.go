package stats

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "escrow"

// Metrics groups the prometheus collectors of the ledger.
type Metrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	balances   *prometheus.GaugeVec
}

// NewMetrics creates the ledger collectors and registers them with the given
// registerer, if not nil.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of ledger operations by result.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		balances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_balance",
			Help:      "Accounted ledger balance per asset in base units.",
		}, []string{"asset"}),
	}

	if registerer != nil {
		for _, c := range []prometheus.Collector{
			m.operations, m.durations, m.balances,
		} {
			if err := registerer.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveOperation records the outcome and the duration of an operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.durations.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetBalance updates the gauge of the accounted balance of an asset.
func (m *Metrics) SetBalance(asset string, amount *big.Int) {
	if m == nil {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.balances.WithLabelValues(asset).Set(value)
}
