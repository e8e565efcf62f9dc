package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/gogo-bridge/pkg/config"
	"github.com/chainsafe/gogo-bridge/pkg/migrations/bridgedb"
	"github.com/chainsafe/gogo-bridge/pkg/pgutil"
	mghelper "github.com/chainsafe/gogo-bridge/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(context.Background(), &cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for bridge database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, bridgedb.Migrations)
	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf("%s", err)
	}
}
