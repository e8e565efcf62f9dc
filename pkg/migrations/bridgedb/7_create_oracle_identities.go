package bridgedb

import (
	"context"
	"log"

	"github.com/chainsafe/gogo-bridge/pkg/db/dao"
	mghelper "github.com/chainsafe/gogo-bridge/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating oracle_identities table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.OracleIdentityDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelCompositeUniqueIndex(ctx, db, &dao.OracleIdentityDao{}, "bridge", "address")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping oracle_identities table...")
		return mghelper.DropTables(ctx, db, &dao.OracleIdentityDao{})
	})
}
