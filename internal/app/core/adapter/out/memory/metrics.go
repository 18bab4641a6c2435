package memory

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// 結算 worker 的 metrics
var (
	mOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "settlement",
		Name:      "operations_total",
		Help:      "Number of operations applied by the settlement worker",
	}, []string{"kind", "result"})
	mQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Subsystem: "settlement",
		Name:      "queue_depth",
		Help:      "Number of operations waiting in the transaction queue",
	})
	mBlocksSealed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "settlement",
		Name:      "blocks_sealed_total",
		Help:      "Number of blocks sealed into the chain",
	})
	mBlockTransfers = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ledger",
		Subsystem: "settlement",
		Name:      "block_transfers",
		Help:      "Number of transfers in each sealed block",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
)

// operationResult 將錯誤轉成 metrics label
func operationResult(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, domain.ErrAccountExists):
		return "account_exists"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrLedgerClosed):
		return "closed"
	default:
		return "error"
	}
}
