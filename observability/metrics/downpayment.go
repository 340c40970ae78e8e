package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type DownpaymentMetrics struct {
	settlements *prometheus.CounterVec
	aborts      *prometheus.CounterVec
	feeVolume   *prometheus.CounterVec
	borrowed    *prometheus.CounterVec
}

var (
	downpaymentOnce     sync.Once
	downpaymentRegistry *DownpaymentMetrics
)

// Downpayment returns the metrics registry tracking settlement outcomes.
func Downpayment() *DownpaymentMetrics {
	downpaymentOnce.Do(func() {
		downpaymentRegistry = &DownpaymentMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "downpayment_settlements_total",
				Help: "Count of committed settlements by adapter.",
			}, []string{"adapter"}),
			aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "downpayment_aborts_total",
				Help: "Count of rolled-back settlements by reason.",
			}, []string{"reason"}),
			feeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "downpayment_fee_volume_wei",
				Help: "Cumulative protocol fees routed to the collector by adapter.",
			}, []string{"adapter"}),
			borrowed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "downpayment_borrowed_wei",
				Help: "Cumulative flash-borrowed volume by adapter.",
			}, []string{"adapter"}),
		}
		prometheus.MustRegister(
			downpaymentRegistry.settlements,
			downpaymentRegistry.aborts,
			downpaymentRegistry.feeVolume,
			downpaymentRegistry.borrowed,
		)
	})
	return downpaymentRegistry
}

func (m *DownpaymentMetrics) ObserveSettlement(adapter string) {
	if m == nil {
		return
	}
	if adapter == "" {
		adapter = "unknown"
	}
	m.settlements.WithLabelValues(adapter).Inc()
}

func (m *DownpaymentMetrics) ObserveAbort(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.aborts.WithLabelValues(reason).Inc()
}

func (m *DownpaymentMetrics) AddFeeVolume(adapter string, fee *big.Int) {
	if m == nil || fee == nil || fee.Sign() <= 0 {
		return
	}
	m.feeVolume.WithLabelValues(adapter).Add(bigToFloat(fee))
}

func (m *DownpaymentMetrics) AddBorrowed(adapter string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.borrowed.WithLabelValues(adapter).Add(bigToFloat(amount))
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
