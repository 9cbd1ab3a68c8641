package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	operations      *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	feeCollections  prometheus.Counter
	feesAccrued     *prometheus.CounterVec
	totalAssets     prometheus.Gauge
	totalShares     prometheus.Gauge
	sharePrice      prometheus.Gauge
	requestLatency  *prometheus.HistogramVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operations_total",
				Help: "Count of completed vault operations by kind.",
			}, []string{"op"}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operation_errors_total",
				Help: "Count of rejected vault operations by kind.",
			}, []string{"op"}),
			feeCollections: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_fee_collections_total",
				Help: "Count of accrued fee collection runs.",
			}),
			feesAccrued: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_fees_accrued_total",
				Help: "Cumulative fee amounts charged by fee kind, in asset units.",
			}, []string{"kind"}),
			totalAssets: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_total_assets",
				Help: "Assets currently managed by the vault.",
			}),
			totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_total_shares",
				Help: "Shares currently outstanding.",
			}),
			sharePrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_share_price",
				Help: "Assets per share, scaled to 1.0 for an empty vault.",
			}),
			requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "vault_rpc_duration_seconds",
				Help:    "Latency of RPC requests by route and status.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.operationErrors,
			vaultRegistry.feeCollections,
			vaultRegistry.feesAccrued,
			vaultRegistry.totalAssets,
			vaultRegistry.totalShares,
			vaultRegistry.sharePrice,
			vaultRegistry.requestLatency,
		)
	})
	return vaultRegistry
}

func (m *VaultMetrics) ObserveOperation(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operations.WithLabelValues(op).Inc()
}

func (m *VaultMetrics) ObserveOperationError(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operationErrors.WithLabelValues(op).Inc()
}

func (m *VaultMetrics) ObserveFeeCollection() {
	if m == nil {
		return
	}
	m.feeCollections.Inc()
}

func (m *VaultMetrics) ObserveFeeAccrued(kind string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.feesAccrued.WithLabelValues(kind).Add(value)
}

func (m *VaultMetrics) SetTotals(totalAssets, totalShares *big.Int) {
	if m == nil {
		return
	}
	if totalAssets != nil {
		value, _ := new(big.Float).SetInt(totalAssets).Float64()
		m.totalAssets.Set(value)
	}
	if totalShares != nil {
		value, _ := new(big.Float).SetInt(totalShares).Float64()
		m.totalShares.Set(value)
	}
}

// SetSharePrice records the price scaled by 1e18, converted to a unit ratio.
func (m *VaultMetrics) SetSharePrice(scaled *big.Int) {
	if m == nil || scaled == nil {
		return
	}
	price := new(big.Float).Quo(new(big.Float).SetInt(scaled), big.NewFloat(1e18))
	value, _ := price.Float64()
	m.sharePrice.Set(value)
}

func (m *VaultMetrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requestLatency.WithLabelValues(route, status).Observe(seconds)
}
