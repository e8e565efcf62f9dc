package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/gogo-bridge/pkg/migrations/bridgedb"
	mghelper "github.com/chainsafe/gogo-bridge/pkg/pgutil"
)

var bridgeTables = []string{
	"balances",
	"allowances",
	"token_state",
	"account_roles",
	"role_fees",
	"consumed_nonces",
	"oracle_identities",
	"bridge_events",
}

func TestBridgeDBMigrations_Apply(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, bridgedb.Migrations)

	// Initialize migration system
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// Run all migrations up
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	for _, table := range append(bridgeTables, "bun_migrations") {
		mghelper.AssertTableExists(t, db, table)
	}

	mghelper.AssertIndexExists(t, db, "idx_oracle_identities_bridge_address")
	mghelper.AssertIndexExists(t, db, "idx_bridge_events_bridge")
	mghelper.AssertIndexExists(t, db, "idx_bridge_events_user_address")
}

func TestMigrations_Idempotency(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, bridgedb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("First Migrate() failed: %v", err)
	}

	// Run migrations second time - should not fail
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second Migrate() failed: %v", err)
	}
	if !group.IsZero() {
		t.Error("Expected no new migrations on second run")
	}

	mghelper.AssertTableExists(t, db, "consumed_nonces")
}

func TestMigrations_Rollback(t *testing.T) {
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, bridgedb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	// Rollback last migration group (all migrations run in one group by Migrate())
	group, err := migrator.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected rollback to process a migration")
	}

	for _, table := range bridgeTables {
		mghelper.AssertTableNotExists(t, db, table)
	}
}
