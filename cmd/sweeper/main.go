// Command sweeper periodically expires overdue escrow sessions. Every status
// change is funneled through the transition service, so the sweep cannot
// bypass the audit-atomicity guarantee.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ravlo/cardvault/internal/config"
	"github.com/ravlo/cardvault/internal/escrow"
	"github.com/ravlo/cardvault/internal/idempotency"
	"github.com/ravlo/cardvault/internal/logging"
	"github.com/ravlo/cardvault/internal/repositories/repomanager"
)

const sweepBatchSize = 100

func main() {
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	var dedup escrow.DedupGuard
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		dedup = idempotency.NewGuard(client, cfg.DedupTTL)
	}

	m := repomanager.NewPostgresRepositoryManager()
	service := escrow.NewTransitionService(db, m, logger, dedup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancel()
	}()

	logger.Info(ctx, "sweeper started", "interval", cfg.SweepInterval.String())

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "sweeper stopped")
			return
		case <-ticker.C:
			n, err := service.ExpireDueSessions(ctx, sweepBatchSize)
			if err != nil {
				logger.Error(ctx, "sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "sessions expired", "count", n)
			}
		}
	}
}
