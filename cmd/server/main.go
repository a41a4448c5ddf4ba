// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/fieldtrack/internal/api"
	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/logging"
)

// Set via -ldflags "-X main.version=..." at build time.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	api.Version = version

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("db_driver", cfg.Database.Driver).
		Str("db_path", cfg.Database.Path).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("archive_enabled", cfg.Retention.Archive.Enabled).
		Msg("Starting fieldtrack")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		logging.Fatal().Err(err).Msg("fieldtrack stopped with an error")
	}
	logging.Info().Msg("fieldtrack stopped")
}

// run builds every component, supervises them until ctx ends and releases
// the stores afterwards.
func run(ctx context.Context, cfg *config.Config) error {
	app, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	return app.tree.Serve(ctx)
}
