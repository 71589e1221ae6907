package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/internal/pkg/config"
	"github.com/ManuelReschke/AutoClub/internal/pkg/metrics"
	"github.com/ManuelReschke/AutoClub/internal/pkg/router"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
)

// runServe serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func runServe(parent context.Context, overrides map[string]any) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withDatabase(ctx, overrides, serve)
}

func serve(ctx context.Context, cfg *config.Config, db *gorm.DB, logger zerolog.Logger) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	app := router.NewApplication(router.Dependencies{
		App:       cfg.App,
		DB:        db,
		Sessions:  session.NewManager(db),
		Logger:    logger,
		Gatherer:  prometheus.DefaultGatherer,
		RateLimit: cfg.App.RateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.App.Addr()).Str("env", cfg.App.Env).Msg("listening")
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(cfg.App.ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
