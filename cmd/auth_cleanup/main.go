package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"wonderclimb/internal/config"
	"wonderclimb/internal/database"
	"wonderclimb/internal/pkg/logger"
	"wonderclimb/internal/repository"
)

func main() {
	retention := flag.Duration("retention", 30*24*time.Hour, "keep revoked refresh tokens this long for reuse detection")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := database.NewHandle(cfg.DatabaseURL, lg)
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	refreshed, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx, now, *retention)
	if err != nil {
		lg.Fatal("cleanup refresh_tokens failed", zap.Error(err))
	}
	activations, err := repository.NewActivationTokenRepository(db).DeleteExpired(ctx, now)
	if err != nil {
		lg.Fatal("cleanup activation_tokens failed", zap.Error(err))
	}

	lg.Info("auth cleanup completed",
		zap.Int64("refresh_tokens", refreshed),
		zap.Int64("activation_tokens", activations),
	)
}
