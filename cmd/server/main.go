package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/odysseus/internal/catalog"
	"github.com/playperu/odysseus/internal/config"
	"github.com/playperu/odysseus/internal/database"
	"github.com/playperu/odysseus/internal/handler/health"
	"github.com/playperu/odysseus/internal/leaderboard"
	"github.com/playperu/odysseus/internal/migrations"
	"github.com/playperu/odysseus/internal/oracle"
	"github.com/playperu/odysseus/internal/server"
	"github.com/playperu/odysseus/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "migrations_applied", applied)

	checks := map[string]health.Checker{
		"sqlite": database.Checker{DB: db},
	}

	// --- Team labels ---
	var teams store.TeamLabels = store.NewSQLiteTeams(db)
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		teams = store.NewRedisTeams(rdb, cfg.TeamLabelTTL)
		checks["redis"] = store.RedisChecker{Client: rdb}
		logger.Info("team labels in redis")
	}

	// --- Collaborators ---
	hc := &http.Client{Timeout: cfg.HTTPClientTimeout}
	// The oracle call has its own deadline per capture.
	oc := oracle.New(cfg.OracleURL, &http.Client{})
	checks["oracle"] = health.CheckerFunc(oc.Health)

	deps := server.Deps{
		Catalog:       catalog.New(cfg.CatalogURL, hc),
		Leaderboard:   leaderboard.New(cfg.LeaderboardURL, hc),
		Oracle:        oc,
		Snapshots:     store.NewSnapshots(db),
		Teams:         teams,
		OracleTimeout: cfg.OracleTimeout,
		DebugPINHash:  cfg.DebugPINHash,
		CORSOrigins:   cfg.CORSOrigins,
	}
	if deps.DebugPINHash == "" {
		logger.Info("debug override disabled: no DEBUG_PIN_HASH")
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, deps, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Optional("oracle").Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
