package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
)

const serviceName = "BridgeService"

const signatureDisplaySize = 16

// logService wraps Service with automatic logging of all mutating calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the bridge Service.
// It logs method entry/exit, duration, errors, and redacted signatures.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger.With(zap.String("bridge", string(svc.Side()))),
	}
}

func (ls *logService) Side() bridge.Side       { return ls.svc.Side() }
func (ls *logService) Address() common.Address { return ls.svc.Address() }

func (ls *logService) FormSigningData(userAddress common.Address, amount, nonce *uint256.Int, direction bridge.Direction) common.Hash {
	return ls.svc.FormSigningData(userAddress, amount, nonce, direction)
}

// Submit wraps the service method with logging
func (ls *logService) Submit(
	ctx context.Context,
	op bridge.Operation,
	caller common.Address,
	req *bridge.Request,
) (event *bridge.Event, err error) {
	start := time.Now()
	method := string(op)

	fields := []zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.String("caller", caller.Hex()),
	}
	if req != nil {
		fields = append(fields,
			zap.String("user_address", req.UserAddress.Hex()),
			zap.Stringer("amount", req.Amount),
			zap.Stringer("nonce", req.Nonce),
			zap.Stringer("direction", req.Direction),
			zap.String("signature", redactSignature(req.Signature)),
		)
	}
	ls.logger.Info(method+" started", fields...)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			stage := StageStart
			if rej, ok := err.(*Rejection); ok {
				stage = rej.Stage
			}
			ls.logger.Warn(method+" rejected",
				zap.String("service", serviceName),
				zap.String("method", method),
				zap.Stringer("stage", stage),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info(method+" completed",
				zap.String("service", serviceName),
				zap.String("method", method),
				zap.String("event_id", event.ID),
				zap.String("event", string(event.Type)),
				zap.Int64("seq", event.Seq),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Submit(ctx, op, caller, req)
}

func (ls *logService) NonceUsed(ctx context.Context, direction bridge.Direction, nonce *uint256.Int) (bool, error) {
	return ls.svc.NonceUsed(ctx, direction, nonce)
}

// AddOracle wraps the service method with logging
func (ls *logService) AddOracle(ctx context.Context, caller, oracle common.Address) (added bool, err error) {
	start := time.Now()

	ls.logger.Info("AddOracle started",
		zap.String("service", serviceName),
		zap.String("method", "AddOracle"),
		zap.String("caller", caller.Hex()),
		zap.String("oracle", oracle.Hex()),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("AddOracle failed",
				zap.String("service", serviceName),
				zap.String("method", "AddOracle"),
				zap.String("oracle", oracle.Hex()),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("AddOracle completed",
				zap.String("service", serviceName),
				zap.String("method", "AddOracle"),
				zap.String("oracle", oracle.Hex()),
				zap.Bool("added", added),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.AddOracle(ctx, caller, oracle)
}

func (ls *logService) Oracles(ctx context.Context) ([]common.Address, error) {
	return ls.svc.Oracles(ctx)
}

func (ls *logService) Events(ctx context.Context, limit int) ([]*bridge.Event, error) {
	return ls.svc.Events(ctx, limit)
}

// redactSignature shows only the edges and the length of a signature
func redactSignature(sig []byte) string {
	if len(sig) == 0 {
		return "<empty>"
	}
	s := hexutil.Encode(sig)
	if len(s) > signatureDisplaySize {
		return fmt.Sprintf("%s...%s (%d bytes)", s[:8], s[len(s)-4:], len(sig))
	}
	return fmt.Sprintf("<%d bytes>", len(sig))
}
