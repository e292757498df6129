// Command migrate applies the embedded schema migrations to the configured
// database.
package main

import (
	"context"
	"database/sql"
	"log"

	"github.com/ravlo/cardvault/internal/config"
	"github.com/ravlo/cardvault/internal/repositories/repomanager"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	log.Println("migrations applied")
}
