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
		log.Println("creating consumed_nonces table...")
		return mghelper.CreateSchema(ctx, db, &dao.ConsumedNonceDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping consumed_nonces table...")
		return mghelper.DropTables(ctx, db, &dao.ConsumedNonceDao{})
	})
}
