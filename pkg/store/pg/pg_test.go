package pg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/migrations/bridgedb"
	"github.com/chainsafe/gogo-bridge/pkg/pgutil"
	"github.com/chainsafe/gogo-bridge/pkg/store"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func setupStore(t *testing.T) (store.Store, *bun.DB) {
	t.Helper()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, bridgedb.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	return NewStore(db), db
}

func TestPGStore_LedgerState(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	maxAmount := new(uint256.Int).SetAllOne()

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SetBalance(ctx, "gold", alice, maxAmount); err != nil {
			return err
		}
		if err := tx.SetAllowance(ctx, "gold", alice, bob, uint256.NewInt(42)); err != nil {
			return err
		}
		if err := tx.SetTotalSupply(ctx, "gold", maxAmount); err != nil {
			return err
		}
		if err := tx.SetSettings(ctx, "gold", token.Settings{BridgeAddress: bob}); err != nil {
			return err
		}
		if err := tx.SetRole(ctx, "gold", alice, 2); err != nil {
			return err
		}
		return tx.SetRoleFee(ctx, "gold", 2, uint256.NewInt(10_000_000))
	})
	require.NoError(t, err)

	// overwrite goes through the upsert path
	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SetAllowance(ctx, "gold", alice, bob, uint256.NewInt(7))
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		balance, err := tx.Balance(ctx, "gold", alice)
		require.NoError(t, err)
		assert.Equal(t, maxAmount, balance)

		balance, err = tx.Balance(ctx, "gogo", alice)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), "ledgers are isolated")

		allowance, err := tx.Allowance(ctx, "gold", alice, bob)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), allowance.Uint64())

		supply, err := tx.TotalSupply(ctx, "gold")
		require.NoError(t, err)
		assert.Equal(t, maxAmount, supply)

		settings, err := tx.Settings(ctx, "gold")
		require.NoError(t, err)
		assert.Equal(t, bob, settings.BridgeAddress)
		assert.False(t, settings.HasFeeCollector())

		role, err := tx.Role(ctx, "gold", alice)
		require.NoError(t, err)
		assert.Equal(t, token.RoleID(2), role)

		role, err = tx.Role(ctx, "gold", bob)
		require.NoError(t, err)
		assert.Equal(t, token.DefaultRole, role)

		rate, err := tx.RoleFee(ctx, "gold", 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(10_000_000), rate.Uint64())
		return nil
	}))
}

func TestPGStore_RollbackOnError(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SetBalance(ctx, "gold", alice, uint256.NewInt(100)); err != nil {
			return err
		}
		if err := tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPublic, uint256.NewInt(1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		balance, err := tx.Balance(ctx, "gold", alice)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())

		used, err := tx.NonceUsed(ctx, bridge.SidePublic, bridge.ToPublic, uint256.NewInt(1))
		require.NoError(t, err)
		assert.False(t, used)
		return nil
	}))
}

func TestPGStore_Nonces(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	big := new(uint256.Int).SetAllOne()

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPublic, big)
	}))

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPublic, big)
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPrivate, big); err != nil {
			return err
		}
		return tx.InsertNonce(ctx, bridge.SidePrivate, bridge.ToPublic, big)
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		used, err := tx.NonceUsed(ctx, bridge.SidePublic, bridge.ToPublic, big)
		require.NoError(t, err)
		assert.True(t, used)

		used, err = tx.NonceUsed(ctx, bridge.SidePrivate, bridge.ToPrivate, big)
		require.NoError(t, err)
		assert.False(t, used)
		return nil
	}))
}

func TestPGStore_ConcurrentNonceSingleWinner(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
				used, err := tx.NonceUsed(ctx, bridge.SidePublic, bridge.ToPublic, uint256.NewInt(99))
				if err != nil {
					return err
				}
				if used {
					return store.ErrConflict
				}
				return tx.InsertNonce(ctx, bridge.SidePublic, bridge.ToPublic, uint256.NewInt(99))
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflicts)
}

func TestPGStore_OraclesAndEvents(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		added, err := tx.AddOracle(ctx, bridge.SidePublic, alice)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = tx.AddOracle(ctx, bridge.SidePublic, alice)
		require.NoError(t, err)
		assert.False(t, added)

		_, err = tx.AddOracle(ctx, bridge.SidePublic, bob)
		return err
	}))

	created := time.Now().UTC().Truncate(time.Microsecond)
	for n := uint64(1); n <= 3; n++ {
		require.NoError(t, s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			e := &bridge.Event{
				ID:          "00000000-0000-0000-0000-00000000000" + string(rune('0'+n)),
				Bridge:      bridge.SidePublic,
				Type:        bridge.EventMintedToGoldToken,
				UserAddress: alice,
				Amount:      uint256.NewInt(n * 100),
				Nonce:       uint256.NewInt(n),
				Direction:   bridge.ToPublic,
				Caller:      bob,
				CreatedAt:   created,
			}
			if err := tx.AppendEvent(ctx, e); err != nil {
				return err
			}
			assert.Positive(t, e.Seq)
			return nil
		}))
	}

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		oracles, err := tx.Oracles(ctx, bridge.SidePublic)
		require.NoError(t, err)
		assert.Equal(t, []common.Address{alice, bob}, oracles)

		oracles, err = tx.Oracles(ctx, bridge.SidePrivate)
		require.NoError(t, err)
		assert.Empty(t, oracles)

		events, err := tx.Events(ctx, bridge.SidePublic, 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, uint64(3), events[0].Nonce.Uint64())
		assert.Equal(t, uint64(300), events[0].Amount.Uint64())
		assert.Equal(t, alice, events[0].UserAddress)
		assert.Equal(t, bob, events[0].Caller)
		assert.Greater(t, events[0].Seq, events[1].Seq)
		assert.True(t, created.Equal(events[0].CreatedAt))
		return nil
	}))
}
