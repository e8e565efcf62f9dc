// Package ledger implements the fungible-token ledger shared by both sides of
// the bridge: balances with conserved supply, allowances, mint and burn
// restricted to the bound bridge, and transfers that deduct a fee based on
// the sender's role.
//
// A Ledger holds only configuration. All state lives in the store.LedgerTx it
// is given, so every call composes into the caller's transaction.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/chainsafe/gogo-bridge/pkg/app/errors"
	"github.com/chainsafe/gogo-bridge/pkg/store"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

// AdminPolicy decides which callers may run administrative operations.
type AdminPolicy interface {
	IsAdmin(caller common.Address) bool
	// DeniedMessage is the rejection message for non-admin callers.
	DeniedMessage() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAdminMint lets admins mint in addition to the bound bridge.
func WithAdminMint() Option {
	return func(l *Ledger) { l.adminMint = true }
}

// WithFeeScale overrides the fee-rate denominator derived from FeeDecimals.
func WithFeeScale(scale *uint256.Int) Option {
	return func(l *Ledger) { l.feeScale = scale.Clone() }
}

// Ledger is one token ledger.
type Ledger struct {
	meta      token.Metadata
	admin     AdminPolicy
	feeScale  *uint256.Int
	adminMint bool
}

// New creates a Ledger.
func New(meta token.Metadata, admin AdminPolicy, opts ...Option) *Ledger {
	l := &Ledger{
		meta:     meta,
		admin:    admin,
		feeScale: FeeScale(meta.FeeDecimals),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) ID() token.ID { return l.meta.ID }
func (l *Ledger) Metadata() token.Metadata { return l.meta }
func (l *Ledger) Decimals() uint8 { return l.meta.Decimals }
func (l *Ledger) FeeDecimals() uint8 { return l.meta.FeeDecimals }
func (l *Ledger) FeeScale() *uint256.Int { return l.feeScale.Clone() }
func (l *Ledger) IsAdmin(a common.Address) bool { return l.admin.IsAdmin(a) }

func (l *Ledger) BalanceOf(ctx context.Context, tx store.LedgerTx, account common.Address) (*uint256.Int, error) {
	return tx.Balance(ctx, l.meta.ID, account)
}

func (l *Ledger) TotalSupply(ctx context.Context, tx store.LedgerTx) (*uint256.Int, error) {
	return tx.TotalSupply(ctx, l.meta.ID)
}

func (l *Ledger) Allowance(ctx context.Context, tx store.LedgerTx, owner, spender common.Address) (*uint256.Int, error) {
	return tx.Allowance(ctx, l.meta.ID, owner, spender)
}

func (l *Ledger) Settings(ctx context.Context, tx store.LedgerTx) (token.Settings, error) {
	return tx.Settings(ctx, l.meta.ID)
}

// BridgeAddress returns the bound bridge, or the zero address when unbound.
func (l *Ledger) BridgeAddress(ctx context.Context, tx store.LedgerTx) (common.Address, error) {
	s, err := tx.Settings(ctx, l.meta.ID)
	if err != nil {
		return common.Address{}, err
	}
	return s.BridgeAddress, nil
}

// TransactionFeeCollector returns the fee collector, or the zero address when fees are off.
func (l *Ledger) TransactionFeeCollector(ctx context.Context, tx store.LedgerTx) (common.Address, error) {
	s, err := tx.Settings(ctx, l.meta.ID)
	if err != nil {
		return common.Address{}, err
	}
	return s.FeeCollector, nil
}

func (l *Ledger) RoleOf(ctx context.Context, tx store.LedgerTx, account common.Address) (token.RoleID, error) {
	return tx.Role(ctx, l.meta.ID, account)
}

func (l *Ledger) RoleTxnFee(ctx context.Context, tx store.LedgerTx, role token.RoleID) (*uint256.Int, error) {
	return tx.RoleFee(ctx, l.meta.ID, role)
}

// Transfer moves amount from from to to, deducting the fee of from's role.
func (l *Ledger) Transfer(ctx context.Context, tx store.LedgerTx, from, to common.Address, amount *uint256.Int) (*Transfer, error) {
	return l.transfer(ctx, tx, from, to, amount)
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(ctx context.Context, tx store.LedgerTx, owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return zeroAddress("ERC20: approve to the zero address")
	}
	if amount == nil {
		return invalidAmount("amount is required")
	}
	return tx.SetAllowance(ctx, l.meta.ID, owner, spender, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, spending
// spender's allowance. The allowance is checked before the balance.
func (l *Ledger) TransferFrom(ctx context.Context, tx store.LedgerTx, spender, from, to common.Address, amount *uint256.Int) (*Transfer, error) {
	if err := l.SpendAllowance(ctx, tx, from, spender, amount); err != nil {
		return nil, err
	}
	return l.transfer(ctx, tx, from, to, amount)
}

// SpendAllowance decreases owner's allowance to spender by amount.
func (l *Ledger) SpendAllowance(ctx context.Context, tx store.LedgerTx, owner, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return invalidAmount("amount is required")
	}
	allowance, err := tx.Allowance(ctx, l.meta.ID, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return insufficientAllowance()
	}
	return tx.SetAllowance(ctx, l.meta.ID, owner, spender, new(uint256.Int).Sub(allowance, amount))
}

// Mint creates amount at to. Only the bound bridge may mint, and admins too
// when the ledger was created WithAdminMint.
func (l *Ledger) Mint(ctx context.Context, tx store.LedgerTx, caller, to common.Address, amount *uint256.Int) error {
	if err := l.requireMinter(ctx, tx, caller); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return zeroAddress("ERC20: mint to the zero address")
	}
	if amount == nil {
		return invalidAmount("amount is required")
	}

	supply, err := tx.TotalSupply(ctx, l.meta.ID)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return apperrors.New(apperrors.CategoryPreconditionFailed, apperrors.ReasonInvalidRequest, ErrSupplyOverflow,
			"total supply overflow")
	}
	balance, err := tx.Balance(ctx, l.meta.ID, to)
	if err != nil {
		return err
	}

	// balance <= supply, so this cannot overflow once the supply did not
	if err := tx.SetBalance(ctx, l.meta.ID, to, new(uint256.Int).Add(balance, amount)); err != nil {
		return err
	}
	return tx.SetTotalSupply(ctx, l.meta.ID, newSupply)
}

// Burn destroys amount at from. Only the bound bridge may burn.
func (l *Ledger) Burn(ctx context.Context, tx store.LedgerTx, caller, from common.Address, amount *uint256.Int) error {
	if err := l.requireBridge(ctx, tx, caller); err != nil {
		return err
	}
	if amount == nil {
		return invalidAmount("amount is required")
	}

	balance, err := tx.Balance(ctx, l.meta.ID, from)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return insufficientBalance("ERC20: burn amount exceeds balance")
	}
	supply, err := tx.TotalSupply(ctx, l.meta.ID)
	if err != nil {
		return err
	}

	if err := tx.SetBalance(ctx, l.meta.ID, from, new(uint256.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return tx.SetTotalSupply(ctx, l.meta.ID, new(uint256.Int).Sub(supply, amount))
}

// SetBridgeAddress binds the bridge. The binding is write-once: setting the
// current value fails with SameBridgeAddress, any other second attempt with
// BridgeAddressAlreadySet.
func (l *Ledger) SetBridgeAddress(ctx context.Context, tx store.LedgerTx, caller, bridgeAddr common.Address) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if bridgeAddr == (common.Address{}) {
		return zeroAddress("bridge address must not be the zero address")
	}

	s, err := tx.Settings(ctx, l.meta.ID)
	if err != nil {
		return err
	}
	if s.BridgeAddress == bridgeAddr {
		return apperrors.ConflictError(ErrSameBridgeAddress, apperrors.ReasonSameBridgeAddress,
			"Provided address is current bridge address")
	}
	if s.HasBridge() {
		return apperrors.ConflictError(ErrBridgeAddressAlreadySet, apperrors.ReasonBridgeAddressAlreadySet,
			"Bridge address is already set")
	}

	s.BridgeAddress = bridgeAddr
	return tx.SetSettings(ctx, l.meta.ID, s)
}

// GrantRole assigns role to account, replacing its previous role.
func (l *Ledger) GrantRole(ctx context.Context, tx store.LedgerTx, caller common.Address, role token.RoleID, account common.Address) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if account == (common.Address{}) {
		return zeroAddress("account must not be the zero address")
	}
	return tx.SetRole(ctx, l.meta.ID, account, role)
}

// SetRoleTxnFee sets the fee rate of role. The rate is over FeeScale and may
// not exceed it.
func (l *Ledger) SetRoleTxnFee(ctx context.Context, tx store.LedgerTx, caller common.Address, role token.RoleID, rate *uint256.Int) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if rate == nil {
		return invalidAmount("fee rate is required")
	}
	if rate.Gt(l.feeScale) {
		return apperrors.New(apperrors.CategoryDataError, apperrors.ReasonFeeRateTooHigh, ErrFeeRateTooHigh,
			"fee rate exceeds fee scale "+l.feeScale.Dec())
	}
	return tx.SetRoleFee(ctx, l.meta.ID, role, rate)
}

// SetTransactionFeeCollector sets the fee collector. The zero address turns
// fee collection off.
func (l *Ledger) SetTransactionFeeCollector(ctx context.Context, tx store.LedgerTx, caller, collector common.Address) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	s, err := tx.Settings(ctx, l.meta.ID)
	if err != nil {
		return err
	}
	s.FeeCollector = collector
	return tx.SetSettings(ctx, l.meta.ID, s)
}

func (l *Ledger) requireAdmin(caller common.Address) error {
	if caller == (common.Address{}) || !l.admin.IsAdmin(caller) {
		return callerNotAdmin(l.admin.DeniedMessage())
	}
	return nil
}

func (l *Ledger) requireBridge(ctx context.Context, tx store.LedgerTx, caller common.Address) error {
	s, err := tx.Settings(ctx, l.meta.ID)
	if err != nil {
		return err
	}
	if !s.HasBridge() || caller != s.BridgeAddress {
		return callerNotBridge()
	}
	return nil
}

func (l *Ledger) requireMinter(ctx context.Context, tx store.LedgerTx, caller common.Address) error {
	if l.adminMint && caller != (common.Address{}) && l.admin.IsAdmin(caller) {
		return nil
	}
	return l.requireBridge(ctx, tx, caller)
}

func (l *Ledger) transfer(ctx context.Context, tx store.LedgerTx, from, to common.Address, amount *uint256.Int) (*Transfer, error) {
	if from == (common.Address{}) {
		return nil, zeroAddress("ERC20: transfer from the zero address")
	}
	if to == (common.Address{}) {
		return nil, zeroAddress("ERC20: transfer to the zero address")
	}
	if amount == nil {
		return nil, invalidAmount("amount is required")
	}

	fromBalance, err := tx.Balance(ctx, l.meta.ID, from)
	if err != nil {
		return nil, err
	}
	if fromBalance.Lt(amount) {
		return nil, insufficientBalance("ERC20: transfer amount exceeds balance")
	}

	fee, collector, err := l.feeFor(ctx, tx, from, amount)
	if err != nil {
		return nil, err
	}
	received := new(uint256.Int).Sub(amount, fee)

	// each credit is read after the previous write so that from, to and the
	// collector may coincide without losing value
	if err := tx.SetBalance(ctx, l.meta.ID, from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return nil, err
	}
	if err := l.credit(ctx, tx, to, received); err != nil {
		return nil, err
	}
	if !fee.IsZero() {
		if err := l.credit(ctx, tx, collector, fee); err != nil {
			return nil, err
		}
	}

	return &Transfer{Amount: amount.Clone(), Fee: fee, Received: received}, nil
}

func (l *Ledger) credit(ctx context.Context, tx store.LedgerTx, account common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	balance, err := tx.Balance(ctx, l.meta.ID, account)
	if err != nil {
		return err
	}
	return tx.SetBalance(ctx, l.meta.ID, account, new(uint256.Int).Add(balance, amount))
}

// feeFor returns the fee owed by sender on amount and where it goes. Fees are
// charged only when a collector is set and the sender's role has a rate.
func (l *Ledger) feeFor(ctx context.Context, tx store.LedgerTx, sender common.Address, amount *uint256.Int) (*uint256.Int, common.Address, error) {
	s, err := tx.Settings(ctx, l.meta.ID)
	if err != nil {
		return nil, common.Address{}, err
	}
	if !s.HasFeeCollector() {
		return new(uint256.Int), common.Address{}, nil
	}

	role, err := tx.Role(ctx, l.meta.ID, sender)
	if err != nil {
		return nil, common.Address{}, err
	}
	rate, err := tx.RoleFee(ctx, l.meta.ID, role)
	if err != nil {
		return nil, common.Address{}, err
	}
	return ComputeFee(amount, rate, l.feeScale), s.FeeCollector, nil
}
