// Package nonce tracks consumed bridge nonces, scoped per bridge instance and
// direction. A consumed nonce is never released.
package nonce

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/store"
)

// ErrNonceReplay is returned when a nonce was already consumed for the direction.
var ErrNonceReplay = errors.New("nonce already consumed")

// Registry is the nonce set of one bridge instance.
type Registry struct {
	side bridge.Side
}

// NewRegistry creates the registry of the given bridge instance.
func NewRegistry(side bridge.Side) *Registry {
	return &Registry{side: side}
}

// IsUsed reports whether nonce was consumed for dir.
func (r *Registry) IsUsed(ctx context.Context, tx store.BridgeTx, dir bridge.Direction, nonce *uint256.Int) (bool, error) {
	used, err := tx.NonceUsed(ctx, r.side, dir, nonce)
	if err != nil {
		return false, fmt.Errorf("query %s nonce: %w", dir, err)
	}
	return used, nil
}

// Consume marks nonce consumed for dir inside tx. It fails with ErrNonceReplay
// when the nonce was consumed before, either earlier in tx or by a committed
// transaction, including one committed concurrently by another process.
func (r *Registry) Consume(ctx context.Context, tx store.BridgeTx, dir bridge.Direction, nonce *uint256.Int) error {
	used, err := r.IsUsed(ctx, tx, dir, nonce)
	if err != nil {
		return err
	}
	if used {
		return ErrNonceReplay
	}

	if err := tx.InsertNonce(ctx, r.side, dir, nonce); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrNonceReplay
		}
		return fmt.Errorf("consume %s nonce: %w", dir, err)
	}
	return nil
}
