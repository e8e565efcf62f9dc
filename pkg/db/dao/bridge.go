package dao

import "time"

// ConsumedNonceDao is a data access object that maps directly to the 'consumed_nonces' table in PostgreSQL.
// The primary key is what makes nonce consumption exactly-once across processes.
type ConsumedNonceDao struct {
	tableName  struct{}  `bun:"table:consumed_nonces"` // nolint
	Bridge     string    `json:"bridge" bun:",pk,type:varchar(16)"`
	Direction  bool      `json:"direction" bun:",pk"`
	Nonce      string    `json:"nonce" bun:",pk,type:numeric(78,0)"`
	ConsumedAt time.Time `json:"consumed_at" bun:",notnull,nullzero,default:current_timestamp"`
}

// OracleIdentityDao is a data access object that maps directly to the 'oracle_identities' table in PostgreSQL.
type OracleIdentityDao struct {
	tableName struct{}  `bun:"table:oracle_identities"` // nolint
	ID        int64     `json:"id" bun:",pk,autoincrement"`
	Bridge    string    `json:"bridge" bun:",notnull,type:varchar(16)"`
	Address   string    `json:"address" bun:",notnull,type:varchar(42)"`
	AddedAt   time.Time `json:"added_at" bun:",notnull,nullzero,default:current_timestamp"`
}

// BridgeEventDao is a data access object that maps directly to the 'bridge_events' table in PostgreSQL.
type BridgeEventDao struct {
	tableName   struct{}  `bun:"table:bridge_events"` // nolint
	Seq         int64     `json:"seq" bun:",pk,autoincrement"`
	EventID     string    `json:"event_id" bun:",unique,notnull,type:varchar(36)"`
	Bridge      string    `json:"bridge" bun:",notnull,type:varchar(16)"`
	EventType   string    `json:"event_type" bun:",notnull,type:varchar(50)"`
	UserAddress string    `json:"user_address" bun:",notnull,type:varchar(42)"`
	Amount      string    `json:"amount" bun:",notnull,type:numeric(78,0)"`
	Nonce       string    `json:"nonce" bun:",notnull,type:numeric(78,0)"`
	Direction   bool      `json:"direction" bun:",notnull"`
	Caller      string    `json:"caller" bun:",notnull,type:varchar(42)"`
	CreatedAt   time.Time `json:"created_at" bun:",notnull,nullzero,default:current_timestamp"`
}
