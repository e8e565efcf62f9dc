// Package store defines the transactional state used by the ledgers and the
// bridge controllers. Every state change happens inside Update; a non-nil
// error from the callback discards everything the callback wrote.
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

// ErrConflict is returned when a write would violate a uniqueness constraint,
// e.g. inserting a nonce that is already consumed.
var ErrConflict = errors.New("store: conflict")

// LedgerTx is the per-transaction view of the token ledgers.
// Reads of missing keys return zero values.
type LedgerTx interface {
	Balance(ctx context.Context, id token.ID, account common.Address) (*uint256.Int, error)
	SetBalance(ctx context.Context, id token.ID, account common.Address, amount *uint256.Int) error

	Allowance(ctx context.Context, id token.ID, owner, spender common.Address) (*uint256.Int, error)
	SetAllowance(ctx context.Context, id token.ID, owner, spender common.Address, amount *uint256.Int) error

	TotalSupply(ctx context.Context, id token.ID) (*uint256.Int, error)
	SetTotalSupply(ctx context.Context, id token.ID, amount *uint256.Int) error

	Settings(ctx context.Context, id token.ID) (token.Settings, error)
	SetSettings(ctx context.Context, id token.ID, settings token.Settings) error

	Role(ctx context.Context, id token.ID, account common.Address) (token.RoleID, error)
	SetRole(ctx context.Context, id token.ID, account common.Address, role token.RoleID) error

	RoleFee(ctx context.Context, id token.ID, role token.RoleID) (*uint256.Int, error)
	SetRoleFee(ctx context.Context, id token.ID, role token.RoleID, rate *uint256.Int) error
}

// BridgeTx is the per-transaction view of the bridge controllers' state.
type BridgeTx interface {
	NonceUsed(ctx context.Context, side bridge.Side, dir bridge.Direction, nonce *uint256.Int) (bool, error)
	// InsertNonce marks the nonce consumed, returning ErrConflict when it already is.
	InsertNonce(ctx context.Context, side bridge.Side, dir bridge.Direction, nonce *uint256.Int) error

	Oracles(ctx context.Context, side bridge.Side) ([]common.Address, error)
	// AddOracle reports whether the address was newly added.
	AddOracle(ctx context.Context, side bridge.Side, oracle common.Address) (bool, error)

	// AppendEvent persists the event and assigns its Seq.
	AppendEvent(ctx context.Context, event *bridge.Event) error
	// Events returns the most recent events of a bridge, newest first.
	Events(ctx context.Context, side bridge.Side, limit int) ([]*bridge.Event, error)
}

// Tx is a store transaction.
type Tx interface {
	LedgerTx
	BridgeTx
}

// TxFunc is run inside a store transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is a transactional state backend.
type Store interface {
	// Update runs fn in a read-write transaction. The transaction commits only
	// when fn returns nil.
	Update(ctx context.Context, fn TxFunc) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn TxFunc) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Zero returns a new zero amount. Stores return it for missing keys.
func Zero() *uint256.Int {
	return new(uint256.Int)
}
