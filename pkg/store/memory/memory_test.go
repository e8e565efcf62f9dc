package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/store"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

const gold token.ID = "gold"

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func TestUpdate_CommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SetBalance(ctx, gold, alice, uint256.NewInt(100)); err != nil {
			return err
		}
		if err := tx.SetTotalSupply(ctx, gold, uint256.NewInt(100)); err != nil {
			return err
		}
		return tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPublic, uint256.NewInt(10))
	})
	require.NoError(t, err)

	err = s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		bal, err := tx.Balance(ctx, gold, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bal.Uint64())

		used, err := tx.NonceUsed(ctx, bridge.SidePublic, bridge.ToPublic, uint256.NewInt(10))
		require.NoError(t, err)
		assert.True(t, used)

		used, err = tx.NonceUsed(ctx, bridge.SidePublic, bridge.ToPrivate, uint256.NewInt(10))
		require.NoError(t, err)
		assert.False(t, used, "nonces are scoped per direction")
		return nil
	})
	require.NoError(t, err)
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		_ = tx.SetBalance(ctx, gold, alice, uint256.NewInt(5))
		_ = tx.InsertNonce(ctx, bridge.SidePrivate, bridge.ToPublic, uint256.NewInt(1))
		_, _ = tx.AddOracle(ctx, bridge.SidePrivate, bob)
		_ = tx.AppendEvent(ctx, &bridge.Event{Bridge: bridge.SidePrivate})
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		bal, _ := tx.Balance(ctx, gold, alice)
		assert.True(t, bal.IsZero())
		used, _ := tx.NonceUsed(ctx, bridge.SidePrivate, bridge.ToPublic, uint256.NewInt(1))
		assert.False(t, used)
		oracles, _ := tx.Oracles(ctx, bridge.SidePrivate)
		assert.Empty(t, oracles)
		events, _ := tx.Events(ctx, bridge.SidePrivate, 0)
		assert.Empty(t, events)
		return nil
	})
	require.NoError(t, err)
}

func TestInsertNonce_Conflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	n := uint256.NewInt(42)

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPrivate, n)
	}))

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPrivate, n)
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestReturnedAmountsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		amount := uint256.NewInt(7)
		if err := tx.SetBalance(ctx, gold, alice, amount); err != nil {
			return err
		}
		amount.SetUint64(1000)

		bal, _ := tx.Balance(ctx, gold, alice)
		bal.SetUint64(999)
		return nil
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		bal, _ := tx.Balance(ctx, gold, alice)
		assert.Equal(t, uint64(7), bal.Uint64())
		return nil
	}))
}

func TestOraclesAndEvents(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		added, err := tx.AddOracle(ctx, bridge.SidePublic, alice)
		require.NoError(t, err)
		assert.True(t, added)
		added, err = tx.AddOracle(ctx, bridge.SidePublic, alice)
		require.NoError(t, err)
		assert.False(t, added)

		for i := 0; i < 3; i++ {
			ev := &bridge.Event{Bridge: bridge.SidePublic, Amount: uint256.NewInt(uint64(i)), Nonce: uint256.NewInt(uint64(i))}
			require.NoError(t, tx.AppendEvent(ctx, ev))
			assert.Equal(t, int64(i+1), ev.Seq)
		}
		return tx.AppendEvent(ctx, &bridge.Event{Bridge: bridge.SidePrivate})
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		oracles, _ := tx.Oracles(ctx, bridge.SidePublic)
		assert.Equal(t, []common.Address{alice}, oracles)

		events, _ := tx.Events(ctx, bridge.SidePublic, 2)
		require.Len(t, events, 2)
		assert.Equal(t, int64(3), events[0].Seq)
		assert.Equal(t, int64(2), events[1].Seq)
		return nil
	}))
}

func TestUpdate_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(context.Context, store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
