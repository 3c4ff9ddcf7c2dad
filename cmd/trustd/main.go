package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/example/trust-ledger/internal/api"
	"github.com/example/trust-ledger/internal/config"
	"github.com/example/trust-ledger/internal/locking"
	"github.com/example/trust-ledger/internal/trust"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var store trust.Store
	switch cfg.StoreDriver {
	case "postgres":
		pool, perr := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if perr != nil {
			logger.Error("failed to create postgres pool", "error", perr)
			os.Exit(1)
		}
		defer pool.Close()

		pg := trust.NewPostgresStore(pool)
		if serr := pg.EnsureSchema(context.Background()); serr != nil {
			logger.Error("failed to apply schema", "error", serr)
			os.Exit(1)
		}
		store = pg
	case "sqlite":
		sq, serr := trust.OpenSQLiteStore(cfg.SQLitePath)
		if serr != nil {
			logger.Error("failed to open sqlite store", "error", serr)
			os.Exit(1)
		}
		defer sq.Close()
		store = sq
	}

	var locks locking.Manager = locking.NewLocal()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		locks = locking.NewRedis(redisClient, "trust_ledger", 30*time.Second)
	}

	service := trust.NewService(store, locks, cfg.Ledger, logger)

	maxBody := int64(getenvInt("API_MAX_BODY_BYTES", 1<<20))

	router, err := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Ledger:       service,
		MaxBodyBytes: maxBody,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("trust ledger listening", "addr", cfg.ListenAddr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
