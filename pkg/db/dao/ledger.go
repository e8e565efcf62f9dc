package dao

import "time"

// BalanceDao is a data access object that maps directly to the 'balances' table in PostgreSQL.
type BalanceDao struct {
	tableName struct{}  `bun:"table:balances"` // nolint
	TokenID   string    `json:"token_id" bun:",pk,type:varchar(64)"`
	Account   string    `json:"account" bun:",pk,type:varchar(42)"`
	Amount    string    `json:"amount" bun:",notnull,type:numeric(78,0)"`
	UpdatedAt time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}

// AllowanceDao is a data access object that maps directly to the 'allowances' table in PostgreSQL.
type AllowanceDao struct {
	tableName struct{}  `bun:"table:allowances"` // nolint
	TokenID   string    `json:"token_id" bun:",pk,type:varchar(64)"`
	Owner     string    `json:"owner" bun:",pk,type:varchar(42)"`
	Spender   string    `json:"spender" bun:",pk,type:varchar(42)"`
	Amount    string    `json:"amount" bun:",notnull,type:numeric(78,0)"`
	UpdatedAt time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}

// TokenStateDao is a data access object that maps directly to the 'token_state' table in PostgreSQL.
// It holds the per-ledger singletons.
type TokenStateDao struct {
	tableName     struct{}  `bun:"table:token_state"` // nolint
	TokenID       string    `json:"token_id" bun:",pk,type:varchar(64)"`
	TotalSupply   string    `json:"total_supply" bun:",notnull,type:numeric(78,0),default:0"`
	BridgeAddress *string   `json:"bridge_address,omitempty" bun:"bridge_address,type:varchar(42)"`
	FeeCollector  *string   `json:"fee_collector,omitempty" bun:"fee_collector,type:varchar(42)"`
	UpdatedAt     time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}

// AccountRoleDao is a data access object that maps directly to the 'account_roles' table in PostgreSQL.
type AccountRoleDao struct {
	tableName struct{}  `bun:"table:account_roles"` // nolint
	TokenID   string    `json:"token_id" bun:",pk,type:varchar(64)"`
	Account   string    `json:"account" bun:",pk,type:varchar(42)"`
	RoleID    int64     `json:"role_id" bun:",notnull"`
	UpdatedAt time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}

// RoleFeeDao is a data access object that maps directly to the 'role_fees' table in PostgreSQL.
type RoleFeeDao struct {
	tableName struct{}  `bun:"table:role_fees"` // nolint
	TokenID   string    `json:"token_id" bun:",pk,type:varchar(64)"`
	RoleID    int64     `json:"role_id" bun:",pk"`
	FeeRate   string    `json:"fee_rate" bun:",notnull,type:numeric(78,0)"`
	UpdatedAt time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}
