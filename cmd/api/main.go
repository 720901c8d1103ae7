package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notely/internal/config"
	"notely/internal/database"
	"notely/internal/database/repositories"
	"notely/internal/reconcile"
	"notely/internal/server"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"
)

func main() {
	sweepOnce := flag.Bool("sweep-once", false, "run one orphan sweep and exit")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log, *sweepOnce); err != nil {
		log.Error("notes-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, sweepOnce bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.DB.DSN()); err != nil {
		return err
	}
	db, err := database.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing stores", "error", err)
		}
	}()
	if err := database.EnsureIndexes(ctx, db.Contents()); err != nil {
		return err
	}

	sweeper := reconcile.NewSweeper(
		repositories.NewNoteMetadataRepository(db.DB()),
		repositories.NewNoteContentRepository(db.Contents()),
		cfg.OrphanGrace,
		reconcile.WithLogger(log),
	)
	if sweepOnce {
		report, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		log.Info("sweep finished", "scanned", report.Scanned, "orphans", report.Orphans, "deleted", report.Deleted, "dangling", report.Dangling)
		return nil
	}

	app := server.New(cfg, db, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully, press Ctrl+C again to force")
		stop()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	if cfg.ReconcileInterval > 0 {
		g.Go(func() error {
			return sweeper.Run(gctx, cfg.ReconcileInterval)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("graceful shutdown complete")
	return nil
}
