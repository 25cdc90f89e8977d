// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/cache"
	"github.com/jason-s-yu/partyroom/internal/config"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/dictionary"
	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/jason-s-yu/partyroom/internal/game/animal"
	"github.com/jason-s-yu/partyroom/internal/game/horse"
	"github.com/jason-s-yu/partyroom/internal/game/jamo"
	"github.com/jason-s-yu/partyroom/internal/game/mystery"
	"github.com/jason-s-yu/partyroom/internal/handlers"
	"github.com/jason-s-yu/partyroom/internal/middleware"
	"github.com/jason-s-yu/partyroom/internal/scenario"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.JWTPrivateKeyFile != "" && cfg.JWTPublicKeyFile != "" {
		err = auth.InitFromPath(cfg.JWTPrivateKeyFile, cfg.JWTPublicKeyFile, cfg.SessionTTL)
	} else {
		logger.Info("no signing keys configured, sessions end with the process")
		err = auth.Init(cfg.SessionTTL)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := scenario.NewCatalog(logger)
	if err != nil {
		logger.Fatalf("scenarios: %v", err)
	}
	if err := catalog.LoadDir(cfg.ScenarioDir); err != nil {
		logger.Fatalf("scenarios: %v", err)
	}

	dict, err := dictionary.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatalf("dictionary: %v", err)
	}

	hub := handlers.NewHub(logger)
	opts := []game.Option{
		game.WithTransport(hub),
		game.WithLogger(logger),
		game.WithAsyncTimeout(cfg.AsyncTimeout),
	}

	// Postgres and Redis are optional; without them the rooms still run but
	// nothing is persisted.
	var leaderboard game.Leaderboard
	if pool, err := database.Connect(ctx, cfg.PostgresURL()); err != nil {
		logger.WithError(err).Warn("postgres unavailable, leaderboard disabled")
	} else {
		defer pool.Close()
		if err := database.Migrate(cfg.PostgresURL()); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
		leaderboard = database.NewLeaderboard(pool)
	}

	if rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.WithError(err).Warn("redis unavailable, action history and caches disabled")
	} else {
		defer rdb.Close()
		opts = append(opts, game.WithHistory(cache.NewHistory(rdb, cfg.HistoryQueue)))
		dict = cache.NewWordCache(rdb, dict, cfg.DictionaryCache, logger)
		if leaderboard != nil {
			leaderboard = cache.NewLeaderboard(rdb, leaderboard, time.Minute, logger)
		}
	}
	if leaderboard != nil {
		opts = append(opts, game.WithLeaderboard(leaderboard))
	}

	engine := game.NewEngine(opts...)
	engine.Register(game.GameHorse, horse.Factory)
	engine.Register(game.GameAnimal, animal.Factory)
	engine.Register(game.GameJamo, jamo.NewFactory(dict))
	engine.Register(game.GameMystery, mystery.NewFactory(catalog))
	defer engine.Shutdown()

	srv := handlers.NewRoomServer(engine, hub, catalog, logger)
	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("POST /session", logged(http.HandlerFunc(handlers.CreateSessionHandler)))
	mux.Handle("GET /rooms", logged(http.HandlerFunc(srv.ListRoomsHandler)))
	mux.Handle("GET /leaderboard/{gameType}", logged(http.HandlerFunc(srv.LeaderboardHandler)))
	mux.Handle("GET /scenarios", logged(http.HandlerFunc(srv.ListScenariosHandler)))
	mux.Handle("/ws", logged(handlers.RoomWSHandler(logger, srv)))

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
