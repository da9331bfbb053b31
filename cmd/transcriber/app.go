package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonathan/sheet-transcriber/internal/artifacts"
	"github.com/jonathan/sheet-transcriber/internal/config"
	"github.com/jonathan/sheet-transcriber/internal/db"
	"github.com/jonathan/sheet-transcriber/internal/gateway"
	"github.com/jonathan/sheet-transcriber/internal/jobs"
	"github.com/jonathan/sheet-transcriber/internal/notation"
	"github.com/jonathan/sheet-transcriber/internal/registry"
	"github.com/jonathan/sheet-transcriber/internal/transcribe"
)

// app bundles the components shared by serve and transcribe.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *artifacts.Store
	gateway *gateway.Gateway
	history *db.DB
	service *jobs.Service
}

// newApp wires the lifecycle service from cfg. The event history is
// connected only when DATABASE_URL is set.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	store := artifacts.NewStore(cfg.UploadDir, cfg.OutputDir,
		artifacts.WithMaxBytes(cfg.MaxUploadBytes),
		artifacts.WithLogger(logger))
	if err := store.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to prepare storage: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	opts := []jobs.Option{jobs.WithLogger(logger)}
	if cfg.DatabaseURL != "" {
		history, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to event history: %w", err)
		}
		if err := history.EnsureSchema(ctx); err != nil {
			history.Close()
			return nil, fmt.Errorf("failed to prepare event history: %w", err)
		}
		a.history = history
		opts = append(opts, jobs.WithRecorder(history))
	}

	bp := transcribe.NewBasicPitch(cfg.BasicPitchBin, logger)
	if err := bp.Available(); err != nil {
		logger.Warn("transcription tool not found, conversions will fail", "binary", bp.Binary, "error", err)
	}

	a.gateway = gateway.New(bp,
		gateway.WithRenderer(notation.NewRenderer()),
		gateway.WithWorkers(cfg.Workers),
		gateway.WithQueueSize(cfg.QueueSize),
		gateway.WithTimeout(cfg.ConversionTimeout),
		gateway.WithLogger(logger))
	a.service = jobs.NewService(store, registry.New(), a.gateway, opts...)
	return a, nil
}

// close drains the gateway and releases the history pool.
func (a *app) close(ctx context.Context) {
	a.gateway.Shutdown(ctx)
	if a.history != nil {
		a.history.Close()
	}
}
