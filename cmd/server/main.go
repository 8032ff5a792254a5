package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"stockledger/internal/cache"
	"stockledger/internal/config"
	"stockledger/internal/db"
	httpapi "stockledger/internal/http"
	"stockledger/internal/logger"
	"stockledger/internal/repository"
	"stockledger/internal/service"
	"stockledger/internal/store"
	"stockledger/internal/store/memory"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []service.Option{service.WithLogger(log)}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		opts = append(opts, service.WithMovementCache(cache.NewRedis(client, cfg.MovementCacheTTL, log)))
		log.Info("movement cache enabled", zap.Duration("ttl", cfg.MovementCacheTTL))
	}

	svc := service.New(st, opts...)
	handler := httpapi.NewHandler(svc, log)
	router := httpapi.NewRouter(handler, log)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("stock ledger listening",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("env", cfg.AppEnv),
			zap.Bool("production", cfg.Production()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			log.Warn("force close failed", zap.Error(closeErr))
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		if cfg.Production() {
			log.Error("in-memory store configured in production; data is lost on exit")
		} else {
			log.Warn("using in-memory store; data is lost on exit")
		}
		return memory.New(), func() {}, nil
	}

	opts := db.DefaultPoolOptions()
	opts.MaxConns = cfg.DBMaxConns
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	applied, err := db.RunMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info("migrations applied", zap.Strings("versions", applied))
	}
	return repository.New(pool), pool.Close, nil
}
