package service

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/gogo-bridge/internal/metrics"
	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/nonce"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

const outcomeOK = "ok"

// metricsService records prometheus metrics for bridge operations
type metricsService struct {
	Service
	decimals uint8
}

// NewMetrics wraps svc with prometheus instrumentation. decimals is used to
// report bridged amounts in whole-token units.
func NewMetrics(svc Service, decimals uint8) Service {
	return &metricsService{Service: svc, decimals: decimals}
}

func (ms *metricsService) Submit(
	ctx context.Context,
	op bridge.Operation,
	caller common.Address,
	req *bridge.Request,
) (*bridge.Event, error) {
	start := time.Now()
	side := string(ms.Side())

	event, err := ms.Service.Submit(ctx, op, caller, req)

	metrics.BridgeOperationDuration.WithLabelValues(side, string(op)).Observe(time.Since(start).Seconds())
	if err != nil {
		var rej *Rejection
		outcome := "Internal"
		if errors.As(err, &rej) {
			outcome = rej.Reason()
		}
		metrics.BridgeOperations.WithLabelValues(side, string(op), outcome).Inc()
		if errors.Is(err, nonce.ErrNonceReplay) {
			metrics.NonceReplays.WithLabelValues(side, req.Direction.String()).Inc()
		}
		return nil, err
	}

	metrics.BridgeOperations.WithLabelValues(side, string(op), outcomeOK).Inc()
	amount, _ := token.ToUnits(event.Amount, ms.decimals).Float64()
	metrics.TransferAmount.WithLabelValues(side, string(op)).Observe(amount)
	return event, nil
}
