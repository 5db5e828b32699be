package main

import (
	"context"
	"log"
	"os"
	"time"

	"fractalscan/adapters/ledger"
	"fractalscan/internal/config"
	"fractalscan/internal/migration"

	"github.com/joho/godotenv"
)

// Usage: migrate [postgres|sqlite <dsn>]
// Without arguments the ledger settings come from the environment.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using system environment variables")
	}

	driver, dsn := targetFromArgs(os.Args[1:])
	if driver == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		driver, dsn = targetFromConfig(cfg.Ledger)
	}
	if driver == "" {
		log.Printf("Ledger driver has no SQL schema, nothing to migrate")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Printf("Migrating %s ledger to schema %s", driver, migration.NewRunner().Version())
	l, err := ledger.OpenSQL(ctx, driver, dsn)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	defer l.Close()

	log.Printf("Migration complete")
}

func targetFromArgs(args []string) (string, string) {
	switch len(args) {
	case 0:
		return "", ""
	case 1:
		log.Fatal("Usage: migrate [postgres|sqlite <dsn>]")
	}
	return args[0], args[1]
}

func targetFromConfig(cfg config.LedgerConfig) (string, string) {
	switch cfg.Driver {
	case config.LedgerPostgres:
		return ledger.DriverPostgres, cfg.DatabaseURL
	case config.LedgerSQLite:
		return ledger.DriverSQLite, cfg.SQLitePath
	default:
		return "", ""
	}
}
