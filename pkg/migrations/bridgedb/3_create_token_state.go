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
		log.Println("creating token_state table...")
		return mghelper.CreateSchema(ctx, db, &dao.TokenStateDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping token_state table...")
		return mghelper.DropTables(ctx, db, &dao.TokenStateDao{})
	})
}
