// cmd/historian is an asynchronous historian service that pops room actions
// from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/partyroom/internal/cache"
	"github.com/jason-s-yu/partyroom/internal/config"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	pool, err := database.Connect(ctx, cfg.PostgresURL())
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewHistory(rdb, cfg.HistoryQueue),
		database.NewHistoryStore(pool),
		historian.Options{
			BatchSize:  cfg.HistorianBatchSize,
			FlushDelay: cfg.HistorianFlush,
			Inactivity: cfg.RoomInactivity,
		},
		logger,
	)
	svc.Run(ctx)
	logger.Info("Historian shutdown complete.")
}
