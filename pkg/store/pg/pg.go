// Package pg is the PostgreSQL store.Store. Every Update is one serializable
// SQL transaction, so processes sharing a database still observe each
// operation as all-or-nothing.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	"github.com/chainsafe/gogo-bridge/pkg/db/dao"
	"github.com/chainsafe/gogo-bridge/pkg/store"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"

	maxSerializationRetries = 3
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of store.Store
func NewStore(db *bun.DB) store.Store {
	return &pgStore{db: db}
}

// Update runs fn in a serializable transaction. Serialization failures are
// retried from the start since no effect of the failed attempt survives.
func (s *pgStore) Update(ctx context.Context, fn store.TxFunc) error {
	var err error
	for attempt := 0; attempt < maxSerializationRetries; attempt++ {
		err = s.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, btx bun.Tx) error {
			return fn(ctx, &pgTx{tx: btx})
		})
		if !isSerializationFailure(err) {
			return mapError(err)
		}
	}
	return fmt.Errorf("transaction aborted after %d attempts: %w", maxSerializationRetries, err)
}

// View runs fn in a read-only transaction.
func (s *pgStore) View(ctx context.Context, fn store.TxFunc) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, &pgTx{tx: btx})
	})
	return mapError(err)
}

func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *pgStore) Close() error {
	return s.db.Close()
}

func isSerializationFailure(err error) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	code := pgErr.Field('C')
	return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
}

func mapError(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Field('M'))
	}
	return err
}

type pgTx struct {
	tx bun.Tx
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return store.Zero(), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return v, nil
}

func addressPtr(a common.Address) *string {
	if a == (common.Address{}) {
		return nil
	}
	s := a.Hex()
	return &s
}

func addressOf(s *string) common.Address {
	if s == nil {
		return common.Address{}
	}
	return common.HexToAddress(*s)
}

func (t *pgTx) Balance(ctx context.Context, id token.ID, account common.Address) (*uint256.Int, error) {
	row := new(dao.BalanceDao)
	err := t.tx.NewSelect().
		Model(row).
		Where("token_id = ?", string(id)).
		Where("account = ?", account.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Zero(), nil
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return parseAmount(row.Amount)
}

func (t *pgTx) SetBalance(ctx context.Context, id token.ID, account common.Address, amount *uint256.Int) error {
	_, err := t.tx.NewInsert().
		Model(&dao.BalanceDao{
			TokenID:   string(id),
			Account:   account.Hex(),
			Amount:    amount.Dec(),
			UpdatedAt: time.Now(),
		}).
		On("CONFLICT (token_id, account) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

func (t *pgTx) Allowance(ctx context.Context, id token.ID, owner, spender common.Address) (*uint256.Int, error) {
	row := new(dao.AllowanceDao)
	err := t.tx.NewSelect().
		Model(row).
		Where("token_id = ?", string(id)).
		Where("owner = ?", owner.Hex()).
		Where("spender = ?", spender.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Zero(), nil
		}
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return parseAmount(row.Amount)
}

func (t *pgTx) SetAllowance(ctx context.Context, id token.ID, owner, spender common.Address, amount *uint256.Int) error {
	_, err := t.tx.NewInsert().
		Model(&dao.AllowanceDao{
			TokenID:   string(id),
			Owner:     owner.Hex(),
			Spender:   spender.Hex(),
			Amount:    amount.Dec(),
			UpdatedAt: time.Now(),
		}).
		On("CONFLICT (token_id, owner, spender) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set allowance: %w", err)
	}
	return nil
}

func (t *pgTx) tokenState(ctx context.Context, id token.ID) (*dao.TokenStateDao, error) {
	row := new(dao.TokenStateDao)
	err := t.tx.NewSelect().
		Model(row).
		Where("token_id = ?", string(id)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dao.TokenStateDao{TokenID: string(id), TotalSupply: "0"}, nil
		}
		return nil, fmt.Errorf("failed to get token state: %w", err)
	}
	return row, nil
}

func (t *pgTx) TotalSupply(ctx context.Context, id token.ID) (*uint256.Int, error) {
	row, err := t.tokenState(ctx, id)
	if err != nil {
		return nil, err
	}
	return parseAmount(row.TotalSupply)
}

func (t *pgTx) SetTotalSupply(ctx context.Context, id token.ID, amount *uint256.Int) error {
	_, err := t.tx.NewInsert().
		Model(&dao.TokenStateDao{
			TokenID:     string(id),
			TotalSupply: amount.Dec(),
			UpdatedAt:   time.Now(),
		}).
		On("CONFLICT (token_id) DO UPDATE").
		Set("total_supply = EXCLUDED.total_supply").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set total supply: %w", err)
	}
	return nil
}

func (t *pgTx) Settings(ctx context.Context, id token.ID) (token.Settings, error) {
	row, err := t.tokenState(ctx, id)
	if err != nil {
		return token.Settings{}, err
	}
	return token.Settings{
		BridgeAddress: addressOf(row.BridgeAddress),
		FeeCollector:  addressOf(row.FeeCollector),
	}, nil
}

func (t *pgTx) SetSettings(ctx context.Context, id token.ID, settings token.Settings) error {
	_, err := t.tx.NewInsert().
		Model(&dao.TokenStateDao{
			TokenID:       string(id),
			TotalSupply:   "0",
			BridgeAddress: addressPtr(settings.BridgeAddress),
			FeeCollector:  addressPtr(settings.FeeCollector),
			UpdatedAt:     time.Now(),
		}).
		On("CONFLICT (token_id) DO UPDATE").
		Set("bridge_address = EXCLUDED.bridge_address").
		Set("fee_collector = EXCLUDED.fee_collector").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set token settings: %w", err)
	}
	return nil
}

func (t *pgTx) Role(ctx context.Context, id token.ID, account common.Address) (token.RoleID, error) {
	row := new(dao.AccountRoleDao)
	err := t.tx.NewSelect().
		Model(row).
		Where("token_id = ?", string(id)).
		Where("account = ?", account.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return token.DefaultRole, nil
		}
		return 0, fmt.Errorf("failed to get role: %w", err)
	}
	return token.RoleID(row.RoleID), nil
}

func (t *pgTx) SetRole(ctx context.Context, id token.ID, account common.Address, role token.RoleID) error {
	_, err := t.tx.NewInsert().
		Model(&dao.AccountRoleDao{
			TokenID:   string(id),
			Account:   account.Hex(),
			RoleID:    int64(role),
			UpdatedAt: time.Now(),
		}).
		On("CONFLICT (token_id, account) DO UPDATE").
		Set("role_id = EXCLUDED.role_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

func (t *pgTx) RoleFee(ctx context.Context, id token.ID, role token.RoleID) (*uint256.Int, error) {
	row := new(dao.RoleFeeDao)
	err := t.tx.NewSelect().
		Model(row).
		Where("token_id = ?", string(id)).
		Where("role_id = ?", int64(role)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Zero(), nil
		}
		return nil, fmt.Errorf("failed to get role fee: %w", err)
	}
	return parseAmount(row.FeeRate)
}

func (t *pgTx) SetRoleFee(ctx context.Context, id token.ID, role token.RoleID, rate *uint256.Int) error {
	_, err := t.tx.NewInsert().
		Model(&dao.RoleFeeDao{
			TokenID:   string(id),
			RoleID:    int64(role),
			FeeRate:   rate.Dec(),
			UpdatedAt: time.Now(),
		}).
		On("CONFLICT (token_id, role_id) DO UPDATE").
		Set("fee_rate = EXCLUDED.fee_rate").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set role fee: %w", err)
	}
	return nil
}

func (t *pgTx) NonceUsed(ctx context.Context, side bridge.Side, dir bridge.Direction, nonce *uint256.Int) (bool, error) {
	exists, err := t.tx.NewSelect().
		Model((*dao.ConsumedNonceDao)(nil)).
		Where("bridge = ?", string(side)).
		Where("direction = ?", bool(dir)).
		Where("nonce = ?::numeric", nonce.Dec()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check nonce: %w", err)
	}
	return exists, nil
}

// InsertNonce relies on the primary key: a concurrent transaction that
// consumed the same nonce makes this insert affect no rows.
func (t *pgTx) InsertNonce(ctx context.Context, side bridge.Side, dir bridge.Direction, nonce *uint256.Int) error {
	res, err := t.tx.NewInsert().
		Model(&dao.ConsumedNonceDao{
			Bridge:     string(side),
			Direction:  bool(dir),
			Nonce:      nonce.Dec(),
			ConsumedAt: time.Now(),
		}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (t *pgTx) Oracles(ctx context.Context, side bridge.Side) ([]common.Address, error) {
	var rows []dao.OracleIdentityDao
	err := t.tx.NewSelect().
		Model(&rows).
		Where("bridge = ?", string(side)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list oracles: %w", err)
	}
	out := make([]common.Address, len(rows))
	for i := range rows {
		out[i] = common.HexToAddress(rows[i].Address)
	}
	return out, nil
}

func (t *pgTx) AddOracle(ctx context.Context, side bridge.Side, oracle common.Address) (bool, error) {
	res, err := t.tx.NewInsert().
		Model(&dao.OracleIdentityDao{
			Bridge:  string(side),
			Address: oracle.Hex(),
			AddedAt: time.Now(),
		}).
		On("CONFLICT (bridge, address) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to add oracle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add oracle: %w", err)
	}
	return n > 0, nil
}

func (t *pgTx) AppendEvent(ctx context.Context, event *bridge.Event) error {
	row := toEventDao(event)
	_, err := t.tx.NewInsert().
		Model(row).
		Returning("seq").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	event.Seq = row.Seq
	return nil
}

func (t *pgTx) Events(ctx context.Context, side bridge.Side, limit int) ([]*bridge.Event, error) {
	var rows []dao.BridgeEventDao
	q := t.tx.NewSelect().
		Model(&rows).
		Where("bridge = ?", string(side)).
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]*bridge.Event, 0, len(rows))
	for i := range rows {
		ev, err := toEvent(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func toEventDao(e *bridge.Event) *dao.BridgeEventDao {
	return &dao.BridgeEventDao{
		EventID:     e.ID,
		Bridge:      string(e.Bridge),
		EventType:   string(e.Type),
		UserAddress: e.UserAddress.Hex(),
		Amount:      e.Amount.Dec(),
		Nonce:       e.Nonce.Dec(),
		Direction:   bool(e.Direction),
		Caller:      e.Caller.Hex(),
		CreatedAt:   e.CreatedAt,
	}
}

func toEvent(row *dao.BridgeEventDao) (*bridge.Event, error) {
	amount, err := parseAmount(row.Amount)
	if err != nil {
		return nil, err
	}
	nonce, err := parseAmount(row.Nonce)
	if err != nil {
		return nil, err
	}
	return &bridge.Event{
		Seq:         row.Seq,
		ID:          row.EventID,
		Bridge:      bridge.Side(row.Bridge),
		Type:        bridge.EventType(row.EventType),
		UserAddress: common.HexToAddress(row.UserAddress),
		Amount:      amount,
		Nonce:       nonce,
		Direction:   bridge.Direction(row.Direction),
		Caller:      common.HexToAddress(row.Caller),
		CreatedAt:   row.CreatedAt,
	}, nil
}
