// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/fieldtrack/internal/api"
	"github.com/tomtom215/fieldtrack/internal/archive"
	"github.com/tomtom215/fieldtrack/internal/auth"
	"github.com/tomtom215/fieldtrack/internal/authz"
	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/database"
	"github.com/tomtom215/fieldtrack/internal/eventbus"
	"github.com/tomtom215/fieldtrack/internal/ingest"
	"github.com/tomtom215/fieldtrack/internal/ledger"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/maintenance"
	"github.com/tomtom215/fieldtrack/internal/middleware"
	"github.com/tomtom215/fieldtrack/internal/retention"
	"github.com/tomtom215/fieldtrack/internal/supervisor"
	"github.com/tomtom215/fieldtrack/internal/supervisor/services"
	ws "github.com/tomtom215/fieldtrack/internal/websocket"
)

const archiveSetupTimeout = 30 * time.Second

type layeredService struct {
	layer supervisor.Layer
	svc   suture.Service
}

// application holds what must be released after the tree stops.
type application struct {
	tree     *supervisor.Tree
	closers  []func() error
	enforcer *authz.Enforcer
}

func (a *application) close() {
	if a.enforcer != nil {
		a.enforcer.Close()
	}
	// Reverse construction order: job store before database.
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Error().Err(err).Msg("Error releasing resource")
		}
	}
}

//nolint:gocyclo // sequential wiring
func build(ctx context.Context, cfg *config.Config) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.closers = append(app.closers, db.Close)
	logging.Info().Str("driver", db.Driver()).Msg("Fix store ready")

	hub := ws.NewHub(cfg.WebSocket.BroadcastBuffer, cfg.WebSocket.ClientBuffer)

	var (
		broadcaster ingest.Broadcaster = hub
		bus         *eventbus.Bus
	)
	if cfg.NATS.Enabled {
		bus, err = eventbus.New(cfg.NATS, hub)
		if err != nil {
			return nil, fmt.Errorf("start event bus: %w", err)
		}
		broadcaster = bus
		app.closers = append(app.closers, func() error {
			bus.Close()
			return nil
		})
		logging.Info().Str("subject_prefix", cfg.NATS.SubjectPrefix).Msg("Cross-instance fan-out enabled")
	}
	ingestor := ingest.NewService(db, db, broadcaster, cfg.Locations.BatchMax)

	var archiver retention.Archiver
	if cfg.Retention.Archive.Enabled {
		arch, err := archive.New(&cfg.Retention.Archive, db)
		if err != nil {
			return nil, err
		}
		setupCtx, cancel := context.WithTimeout(ctx, archiveSetupTimeout)
		err = arch.EnsureBucket(setupCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("prepare archive bucket: %w", err)
		}
		archiver = arch
		logging.Info().Str("bucket", cfg.Retention.Archive.Bucket).Msg("Purge archive enabled")
	}

	jobs, err := maintenance.OpenJobStore(cfg.Maintenance.JobsPath)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	app.closers = append(app.closers, jobs.Close)

	runner, err := maintenance.NewRunner(jobs, retention.NewService(db, archiver), cfg.Maintenance.HistoryLimit)
	if err != nil {
		return nil, err
	}
	scheduler := maintenance.NewScheduler(runner, cfg.Retention)

	enforcer, err := authz.NewEnforcer(cfg.Authz)
	if err != nil {
		return nil, fmt.Errorf("load authorization policy: %w", err)
	}
	app.enforcer = enforcer

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("configure authentication: %w", err)
	}

	ingestLimiter := middleware.NewUserRateLimiter(cfg.Security.IngestRatePerSecond, cfg.Security.IngestBurst, api.RespondRateLimited)

	handler := api.NewHandler(cfg, ingestor, db, runner, enforcer, hub)
	handler.SetLedger(ledger.NewService(db, cfg.Ledger.MaxRetries))
	router := api.NewRouter(
		handler,
		auth.NewMiddleware(jwtManager, api.RespondError),
		authz.NewMiddleware(enforcer, api.RespondError),
		ingestLimiter,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)),
	)

	// No write timeout: synchronous maintenance responses can take minutes.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	adds := []layeredService{
		{supervisor.LayerData, runner},
		{supervisor.LayerMessaging, services.NewHubService(hub)},
		{supervisor.LayerAPI, services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout)},
		{supervisor.LayerAPI, ingestLimiter},
	}
	if scheduler.Enabled() {
		adds = append(adds, layeredService{supervisor.LayerData, scheduler})
	}
	if bus != nil {
		adds = append(adds, layeredService{supervisor.LayerMessaging, bus})
	}
	for _, ls := range adds {
		if _, err := tree.Add(ls.layer, ls.svc); err != nil {
			return nil, err
		}
	}
	app.tree = tree
	return app, nil
}
