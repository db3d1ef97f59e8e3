package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"selaski/internal/api"
	"selaski/internal/config"
	"selaski/internal/redis"
	"selaski/internal/service/message"
	"selaski/internal/service/user"
	"selaski/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("SELASKI_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.BasicConfig.LogLevel)
	slog.SetDefault(log)
	if !strings.EqualFold(cfg.BasicConfig.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbType := cfg.BasicConfig.Database
	log.Info("opening database", "driver", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, dbType); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	store, err := storage.NewStore(db, dbType)
	if err != nil {
		return err
	}

	var users storage.UserFinder = store
	health := api.HealthCheck(store.Ping)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer rdb.Close()
		users = redis.NewUserCache(rdb, store, time.Duration(cfg.Redis.UserTTLMin)*time.Minute)
		health = func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}
		log.Info("redis user cache enabled", "host", cfg.Redis.Host, "ttl_minutes", cfg.Redis.UserTTLMin)
	}

	handler := api.NewHandler(
		user.NewService(store, users),
		message.NewService(store, users),
		health,
	)
	router := api.NewRouter(handler, api.RouterConfig{
		Logger:      log,
		Metrics:     api.NewMetrics(),
		CORSOrigins: cfg.BasicConfig.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", srv.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
