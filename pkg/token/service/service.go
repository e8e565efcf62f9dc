package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/chainsafe/gogo-bridge/internal/metrics"
	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	"github.com/chainsafe/gogo-bridge/pkg/executor"
	"github.com/chainsafe/gogo-bridge/pkg/ledger"
	"github.com/chainsafe/gogo-bridge/pkg/store"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

const outcomeOK = "ok"

// Info is the public description of a ledger and its admin-managed settings.
type Info struct {
	ID            token.ID
	Name          string
	Symbol        string
	Decimals      uint8
	FeeDecimals   uint8
	FeeScale      *uint256.Int
	TotalSupply   *uint256.Int
	BridgeAddress common.Address
	FeeCollector  common.Address
}

// TokenService exposes one ledger. Every call runs in its own executor
// transaction, so calls are serialized with bridge operations.
type TokenService struct {
	ledger *ledger.Ledger
	exec   *executor.Executor
	logger *zap.Logger
}

// NewTokenService creates a new token service
func NewTokenService(l *ledger.Ledger, exec *executor.Executor, logger *zap.Logger) *TokenService {
	return &TokenService{
		ledger: l,
		exec:   exec,
		logger: logger.With(zap.String("token", string(l.ID()))),
	}
}

// ID returns the ledger id.
func (s *TokenService) ID() token.ID {
	return s.ledger.ID()
}

// Info returns metadata, supply and settings of the ledger.
func (s *TokenService) Info(ctx context.Context) (*Info, error) {
	meta := s.ledger.Metadata()
	info := &Info{
		ID:          meta.ID,
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		FeeDecimals: meta.FeeDecimals,
		FeeScale:    s.ledger.FeeScale(),
	}
	err := s.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		supply, err := s.ledger.TotalSupply(ctx, tx)
		if err != nil {
			return err
		}
		settings, err := s.ledger.Settings(ctx, tx)
		if err != nil {
			return err
		}
		info.TotalSupply = supply
		info.BridgeAddress = settings.BridgeAddress
		info.FeeCollector = settings.FeeCollector
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// GetBalance returns the balance of account in base units.
func (s *TokenService) GetBalance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	var balance *uint256.Int
	err := s.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		balance, err = s.ledger.BalanceOf(ctx, tx, account)
		return err
	})
	return balance, err
}

// GetAllowance returns the amount spender may move out of owner's balance.
func (s *TokenService) GetAllowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error) {
	var allowance *uint256.Int
	err := s.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		allowance, err = s.ledger.Allowance(ctx, tx, owner, spender)
		return err
	})
	return allowance, err
}

// GetRole returns the fee role of account.
func (s *TokenService) GetRole(ctx context.Context, account common.Address) (token.RoleID, error) {
	var role token.RoleID
	err := s.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		role, err = s.ledger.RoleOf(ctx, tx, account)
		return err
	})
	return role, err
}

// GetRoleTxnFee returns the fee rate of role over the ledger fee scale.
func (s *TokenService) GetRoleTxnFee(ctx context.Context, role token.RoleID) (*uint256.Int, error) {
	var rate *uint256.Int
	err := s.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rate, err = s.ledger.RoleTxnFee(ctx, tx, role)
		return err
	})
	return rate, err
}

// Transfer moves amount from caller to to, deducting caller's role fee.
func (s *TokenService) Transfer(ctx context.Context, caller, to common.Address, amount *uint256.Int) (*ledger.Transfer, error) {
	var res *ledger.Transfer
	err := s.update(ctx, "transfer", func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = s.ledger.Transfer(ctx, tx, caller, to, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordFee(res)
	s.logger.Info("Transfer completed",
		zap.String("from", caller.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", res.Amount.Dec()),
		zap.String("fee", res.Fee.Dec()))
	return res, nil
}

// Approve sets the amount spender may move out of caller's balance.
func (s *TokenService) Approve(ctx context.Context, caller, spender common.Address, amount *uint256.Int) error {
	return s.update(ctx, "approve", func(ctx context.Context, tx store.Tx) error {
		return s.ledger.Approve(ctx, tx, caller, spender, amount)
	})
}

// TransferFrom moves amount from from to to, spending caller's allowance.
func (s *TokenService) TransferFrom(ctx context.Context, caller, from, to common.Address, amount *uint256.Int) (*ledger.Transfer, error) {
	var res *ledger.Transfer
	err := s.update(ctx, "transfer_from", func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = s.ledger.TransferFrom(ctx, tx, caller, from, to, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordFee(res)
	s.logger.Info("TransferFrom completed",
		zap.String("spender", caller.Hex()),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", res.Amount.Dec()),
		zap.String("fee", res.Fee.Dec()))
	return res, nil
}

// Mint creates amount at to. The caller must be the bound bridge, or an
// admin on ledgers that allow admin minting.
func (s *TokenService) Mint(ctx context.Context, caller, to common.Address, amount *uint256.Int) error {
	err := s.update(ctx, "mint", func(ctx context.Context, tx store.Tx) error {
		return s.ledger.Mint(ctx, tx, caller, to, amount)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Mint completed", zap.String("to", to.Hex()), zap.String("amount", amount.Dec()))
	s.refreshSupply(ctx)
	return nil
}

// Burn destroys amount at from. The caller must be the bound bridge.
func (s *TokenService) Burn(ctx context.Context, caller, from common.Address, amount *uint256.Int) error {
	err := s.update(ctx, "burn", func(ctx context.Context, tx store.Tx) error {
		return s.ledger.Burn(ctx, tx, caller, from, amount)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Burn completed", zap.String("from", from.Hex()), zap.String("amount", amount.Dec()))
	s.refreshSupply(ctx)
	return nil
}

// SetBridgeAddress binds the ledger to its bridge. It can succeed only once.
func (s *TokenService) SetBridgeAddress(ctx context.Context, caller, bridgeAddr common.Address) error {
	err := s.update(ctx, "set_bridge_address", func(ctx context.Context, tx store.Tx) error {
		return s.ledger.SetBridgeAddress(ctx, tx, caller, bridgeAddr)
	})
	if err == nil {
		s.logger.Info("Bridge address set", zap.String("bridge_address", bridgeAddr.Hex()))
	}
	return err
}

// GrantRole assigns role to account.
func (s *TokenService) GrantRole(ctx context.Context, caller common.Address, role token.RoleID, account common.Address) error {
	return s.update(ctx, "grant_role", func(ctx context.Context, tx store.Tx) error {
		return s.ledger.GrantRole(ctx, tx, caller, role, account)
	})
}

// SetRoleTxnFee sets the fee rate of role.
func (s *TokenService) SetRoleTxnFee(ctx context.Context, caller common.Address, role token.RoleID, rate *uint256.Int) error {
	return s.update(ctx, "set_role_fee", func(ctx context.Context, tx store.Tx) error {
		return s.ledger.SetRoleTxnFee(ctx, tx, caller, role, rate)
	})
}

// SetTransactionFeeCollector sets the account receiving transfer fees.
func (s *TokenService) SetTransactionFeeCollector(ctx context.Context, caller, collector common.Address) error {
	return s.update(ctx, "set_fee_collector", func(ctx context.Context, tx store.Tx) error {
		return s.ledger.SetTransactionFeeCollector(ctx, tx, caller, collector)
	})
}

func (s *TokenService) update(ctx context.Context, operation string, fn store.TxFunc) error {
	start := time.Now()
	err := s.exec.Execute(ctx, fn)

	outcome := outcomeOK
	if err != nil {
		outcome = apperrors.ReasonOf(err)
		if apperrors.IsInternalError(err) {
			s.logger.Error("Ledger operation failed",
				zap.String("operation", operation),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
		} else {
			s.logger.Debug("Ledger operation rejected",
				zap.String("operation", operation),
				zap.String("reason", outcome),
				zap.Error(err))
		}
	}
	metrics.LedgerOperations.WithLabelValues(string(s.ledger.ID()), operation, outcome).Inc()
	return err
}

func (s *TokenService) recordFee(res *ledger.Transfer) {
	s.RecordFee(res.Fee)
}

// RecordFee adds a collected transfer fee to the fee counter.
func (s *TokenService) RecordFee(fee *uint256.Int) {
	if fee == nil || fee.IsZero() {
		return
	}
	v, _ := token.ToUnits(fee, s.ledger.Decimals()).Float64()
	metrics.FeesCollected.WithLabelValues(string(s.ledger.ID())).Add(v)
}

// refreshSupply updates the supply gauge. Failures only affect the metric.
func (s *TokenService) refreshSupply(ctx context.Context) {
	var supply *uint256.Int
	err := s.exec.Query(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		supply, err = s.ledger.TotalSupply(ctx, tx)
		return err
	})
	if err != nil {
		s.logger.Warn("Failed to read total supply", zap.Error(err))
		return
	}
	s.RecordSupply(supply)
}

// RecordSupply sets the supply gauge to supply.
func (s *TokenService) RecordSupply(supply *uint256.Int) {
	v, _ := token.ToUnits(supply, s.ledger.Decimals()).Float64()
	metrics.TotalSupply.WithLabelValues(string(s.ledger.ID())).Set(v)
}
