// Package memory is an in-process store.Store. Each transaction writes into
// its own overlay which is merged into the committed state only on success.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/store"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

type balanceKey struct {
	token   token.ID
	account common.Address
}

type allowanceKey struct {
	token   token.ID
	owner   common.Address
	spender common.Address
}

type roleFeeKey struct {
	token token.ID
	role  token.RoleID
}

type nonceKey struct {
	side  bridge.Side
	dir   bridge.Direction
	nonce [32]byte
}

type state struct {
	balances   map[balanceKey]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	supply     map[token.ID]*uint256.Int
	settings   map[token.ID]token.Settings
	roles      map[balanceKey]token.RoleID
	roleFees   map[roleFeeKey]*uint256.Int
	nonces     map[nonceKey]struct{}
	oracles    map[bridge.Side][]common.Address
	events     []*bridge.Event
}

func newState() *state {
	return &state{
		balances:   make(map[balanceKey]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
		supply:     make(map[token.ID]*uint256.Int),
		settings:   make(map[token.ID]token.Settings),
		roles:      make(map[balanceKey]token.RoleID),
		roleFees:   make(map[roleFeeKey]*uint256.Int),
		nonces:     make(map[nonceKey]struct{}),
		oracles:    make(map[bridge.Side][]common.Address),
	}
}

// Store keeps all state in memory. It is safe for concurrent use; writers are
// serialized and readers see only committed state.
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{state: newState()}
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s.state)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View implements store.Store. Writes made by fn are discarded.
func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, newTx(s.state))
}

// Ping implements store.Store.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// layer is a copy-on-write overlay over a committed map.
type layer[K comparable, V any] struct {
	base  map[K]V
	dirty map[K]V
}

func newLayer[K comparable, V any](base map[K]V) layer[K, V] {
	return layer[K, V]{base: base, dirty: make(map[K]V)}
}

func (l *layer[K, V]) get(k K) (V, bool) {
	if v, ok := l.dirty[k]; ok {
		return v, true
	}
	v, ok := l.base[k]
	return v, ok
}

func (l *layer[K, V]) set(k K, v V) {
	l.dirty[k] = v
}

func (l *layer[K, V]) commit() {
	for k, v := range l.dirty {
		l.base[k] = v
	}
}

type tx struct {
	committed *state

	balances   layer[balanceKey, *uint256.Int]
	allowances layer[allowanceKey, *uint256.Int]
	supply     layer[token.ID, *uint256.Int]
	settings   layer[token.ID, token.Settings]
	roles      layer[balanceKey, token.RoleID]
	roleFees   layer[roleFeeKey, *uint256.Int]
	nonces     layer[nonceKey, struct{}]
	oracles    layer[bridge.Side, []common.Address]
	events     []*bridge.Event
}

func newTx(s *state) *tx {
	return &tx{
		committed:  s,
		balances:   newLayer(s.balances),
		allowances: newLayer(s.allowances),
		supply:     newLayer(s.supply),
		settings:   newLayer(s.settings),
		roles:      newLayer(s.roles),
		roleFees:   newLayer(s.roleFees),
		nonces:     newLayer(s.nonces),
		oracles:    newLayer(s.oracles),
	}
}

func (t *tx) commit() {
	t.balances.commit()
	t.allowances.commit()
	t.supply.commit()
	t.settings.commit()
	t.roles.commit()
	t.roleFees.commit()
	t.nonces.commit()
	t.oracles.commit()
	t.committed.events = append(t.committed.events, t.events...)
}

func amountOf(v *uint256.Int, ok bool) *uint256.Int {
	if !ok || v == nil {
		return store.Zero()
	}
	return v.Clone()
}

func (t *tx) Balance(_ context.Context, id token.ID, account common.Address) (*uint256.Int, error) {
	return amountOf(t.balances.get(balanceKey{id, account})), nil
}

func (t *tx) SetBalance(_ context.Context, id token.ID, account common.Address, amount *uint256.Int) error {
	t.balances.set(balanceKey{id, account}, amount.Clone())
	return nil
}

func (t *tx) Allowance(_ context.Context, id token.ID, owner, spender common.Address) (*uint256.Int, error) {
	return amountOf(t.allowances.get(allowanceKey{id, owner, spender})), nil
}

func (t *tx) SetAllowance(_ context.Context, id token.ID, owner, spender common.Address, amount *uint256.Int) error {
	t.allowances.set(allowanceKey{id, owner, spender}, amount.Clone())
	return nil
}

func (t *tx) TotalSupply(_ context.Context, id token.ID) (*uint256.Int, error) {
	return amountOf(t.supply.get(id)), nil
}

func (t *tx) SetTotalSupply(_ context.Context, id token.ID, amount *uint256.Int) error {
	t.supply.set(id, amount.Clone())
	return nil
}

func (t *tx) Settings(_ context.Context, id token.ID) (token.Settings, error) {
	s, _ := t.settings.get(id)
	return s, nil
}

func (t *tx) SetSettings(_ context.Context, id token.ID, settings token.Settings) error {
	t.settings.set(id, settings)
	return nil
}

func (t *tx) Role(_ context.Context, id token.ID, account common.Address) (token.RoleID, error) {
	r, _ := t.roles.get(balanceKey{id, account})
	return r, nil
}

func (t *tx) SetRole(_ context.Context, id token.ID, account common.Address, role token.RoleID) error {
	t.roles.set(balanceKey{id, account}, role)
	return nil
}

func (t *tx) RoleFee(_ context.Context, id token.ID, role token.RoleID) (*uint256.Int, error) {
	return amountOf(t.roleFees.get(roleFeeKey{id, role})), nil
}

func (t *tx) SetRoleFee(_ context.Context, id token.ID, role token.RoleID, rate *uint256.Int) error {
	t.roleFees.set(roleFeeKey{id, role}, rate.Clone())
	return nil
}

func (t *tx) NonceUsed(_ context.Context, side bridge.Side, dir bridge.Direction, nonce *uint256.Int) (bool, error) {
	_, ok := t.nonces.get(nonceKey{side, dir, nonce.Bytes32()})
	return ok, nil
}

func (t *tx) InsertNonce(_ context.Context, side bridge.Side, dir bridge.Direction, nonce *uint256.Int) error {
	k := nonceKey{side, dir, nonce.Bytes32()}
	if _, ok := t.nonces.get(k); ok {
		return store.ErrConflict
	}
	t.nonces.set(k, struct{}{})
	return nil
}

func (t *tx) Oracles(_ context.Context, side bridge.Side) ([]common.Address, error) {
	list, _ := t.oracles.get(side)
	return append([]common.Address(nil), list...), nil
}

func (t *tx) AddOracle(_ context.Context, side bridge.Side, oracle common.Address) (bool, error) {
	list, _ := t.oracles.get(side)
	for _, o := range list {
		if o == oracle {
			return false, nil
		}
	}
	next := make([]common.Address, 0, len(list)+1)
	next = append(next, list...)
	t.oracles.set(side, append(next, oracle))
	return true, nil
}

func (t *tx) AppendEvent(_ context.Context, event *bridge.Event) error {
	event.Seq = int64(len(t.committed.events) + len(t.events) + 1)
	t.events = append(t.events, cloneEvent(event))
	return nil
}

func (t *tx) Events(_ context.Context, side bridge.Side, limit int) ([]*bridge.Event, error) {
	all := make([]*bridge.Event, 0, len(t.committed.events)+len(t.events))
	for _, e := range t.committed.events {
		if e.Bridge == side {
			all = append(all, e)
		}
	}
	for _, e := range t.events {
		if e.Bridge == side {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]*bridge.Event, len(all))
	for i, e := range all {
		out[i] = cloneEvent(e)
	}
	return out, nil
}

func cloneEvent(e *bridge.Event) *bridge.Event {
	c := *e
	if e.Amount != nil {
		c.Amount = e.Amount.Clone()
	}
	if e.Nonce != nil {
		c.Nonce = e.Nonce.Clone()
	}
	return &c
}
