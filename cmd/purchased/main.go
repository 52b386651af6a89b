package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LemonSchneid/Bit-Indie-sub000/internal/config"
	"github.com/LemonSchneid/Bit-Indie-sub000/internal/server"
	"github.com/LemonSchneid/Bit-Indie-sub000/internal/store"
	"github.com/LemonSchneid/Bit-Indie-sub000/lnurl"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	feePercent, err := decimal.NewFromString(cfg.PlatformFeePercent)
	if err != nil {
		slog.Error("invalid platform fee percent", "value", cfg.PlatformFeePercent, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	st := store.New(pool)

	srv := server.New(st, lnurl.NewClient(&lnurl.ClientConfig{Timeout: cfg.LnurlTimeout}), server.Config{
		PlatformFeePercent: feePercent,
		CommentMaxLength:   cfg.CommentMaxLength,
		Logger:             logger,
	})

	// Expiry janitor: stale pending purchases become EXPIRED so pollers see
	// a terminal status instead of waiting forever.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := st.ExpireStalePending(ctx, cfg.InvoiceTTL)
				if err != nil {
					if ctx.Err() == nil {
						slog.Error("expiry sweep failed", "error", err)
					}
					continue
				}
				if expired > 0 {
					slog.Info("expired stale purchases", "count", expired)
				}
			}
		}
	}()

	go func() {
		slog.Info("purchase service listening", "addr", cfg.Addr())
		if err := srv.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	if err := srv.Shutdown(context.Background()); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("purchase service stopped gracefully")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
