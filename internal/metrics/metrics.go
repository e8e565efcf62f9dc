package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BridgeOperations counts bridge operations by bridge, operation and outcome
	// (ok or the rejection reason)
	BridgeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_operations_total",
			Help: "Total number of bridge operations",
		},
		[]string{"bridge", "operation", "outcome"},
	)

	// BridgeOperationDuration tracks bridge operation processing time
	BridgeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_operation_duration_seconds",
			Help:    "Bridge operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bridge", "operation"},
	)

	// TransferAmount tracks the amount of tokens bridged, in whole-token units
	TransferAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_transfer_amount",
			Help:    "Amount of tokens bridged",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"bridge", "operation"},
	)

	// NonceReplays counts rejected replays by bridge and direction
	NonceReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_nonce_replays_total",
			Help: "Total number of rejected nonce replays",
		},
		[]string{"bridge", "direction"},
	)

	// FeesCollected counts transfer fees credited to the fee collector, in whole-token units
	FeesCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_fees_collected_total",
			Help: "Total transfer fees collected",
		},
		[]string{"token"},
	)

	// TotalSupply tracks the total supply of each ledger, in whole-token units
	TotalSupply = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_total_supply",
			Help: "Current total supply by token",
		},
		[]string{"token"},
	)

	// LedgerOperations counts ledger operations by token, operation and outcome
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of ledger operations",
		},
		[]string{"token", "operation", "outcome"},
	)
)
