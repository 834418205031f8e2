// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tomtom215/fieldsync/internal/api"
	"github.com/tomtom215/fieldsync/internal/canvass"
	"github.com/tomtom215/fieldsync/internal/config"
	"github.com/tomtom215/fieldsync/internal/connectivity"
	"github.com/tomtom215/fieldsync/internal/geofence"
	"github.com/tomtom215/fieldsync/internal/kvstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/retry"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/supervisor"
	"github.com/tomtom215/fieldsync/internal/supervisor/services"
	"github.com/tomtom215/fieldsync/internal/websocket"
)

// App is a fully wired client. Nothing runs until its services are served.
type App struct {
	Config      *config.Config
	DeviceID    string
	KV          *kvstore.BadgerStore
	Remote      *remote.Client
	Monitor     *connectivity.Monitor
	Coordinator *canvass.Coordinator
	Hub         *websocket.Hub
	Handler     http.Handler
	Server      *http.Server
}

// NewApp opens local storage and wires every component from cfg. The
// caller must Close the app.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	turfs, err := geofence.LoadTurfs(cfg.Form.TurfFile)
	if err != nil {
		return nil, err
	}

	kv, err := kvstore.Open(kvstore.Config{
		Path:         cfg.Storage.Path,
		SyncWrites:   cfg.Storage.SyncWrites,
		CloseTimeout: cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, KV: kv}
	if err := app.wire(ctx, turfs); err != nil {
		_ = kv.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, turfs []geofence.Turf) error {
	cfg := a.Config

	deviceID, err := kvstore.DeviceID(ctx, a.KV)
	if err != nil {
		return err
	}
	a.DeviceID = deviceID

	a.Remote, err = remote.New(remote.Config{
		BaseURL:   cfg.Server.BaseURL(),
		Timeout:   cfg.Server.Timeout,
		Token:     remote.StaticToken{Raw: cfg.Auth.Token},
		RateLimit: cfg.Sync.RateLimit,
		RateBurst: cfg.Sync.RateBurst,
		ProbeURL:  cfg.Connectivity.ProbeURL,
	})
	if err != nil {
		return err
	}

	a.Monitor = connectivity.NewMonitor(&connectivity.HTTPProbe{
		Prober:   a.Remote,
		Interval: cfg.Connectivity.ProbeInterval,
		Timeout:  cfg.Connectivity.ProbeTimeout,
	})
	a.Hub = websocket.NewHub(cfg.API.CORSOrigins)

	a.Coordinator, err = canvass.New(canvass.Deps{
		Store:    store.New(),
		Queue:    retry.NewQueue(a.KV),
		Fetcher:  a.Remote,
		Sender:   a.Remote,
		Monitor:  a.Monitor,
		Settings: canvass.NewSettingsStore(a.KV, cfg.Sync.ChillMode, cfg.Form.DefaultFilters),
	}, canvass.Options{
		FormID:    cfg.Form.ID,
		DeviceID:  deviceID,
		AddNew:    cfg.Form.AddNew,
		Limit:     cfg.Sync.Limit,
		Debounce:  cfg.Sync.Debounce,
		Turfs:     turfs,
		Publisher: a.Hub,
	})
	if err != nil {
		return err
	}

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.API.CORSOrigins
	mw.RateLimitRequests = cfg.API.RateLimit
	mw.RateLimitWindow = cfg.API.RateLimitWindow
	a.Handler = api.NewRouter(a.Coordinator, a.Hub, mw).SetupChi()
	a.Server = &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logging.Info().
		Str("server", a.Remote.BaseURL()).
		Str("form_id", cfg.Form.ID).
		Str("device_id", deviceID).
		Int("turfs", len(turfs)).
		Msg("Client wired")
	return nil
}

// Tree places the app's services in a supervisor tree.
func (a *App) Tree(logger *slog.Logger) (*supervisor.SupervisorTree, error) {
	sc := a.Config.Supervisor
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.TreeConfig{
		FailureThreshold: sc.FailureThreshold,
		FailureDecay:     sc.FailureDecay,
		FailureBackoff:   sc.FailureBackoff,
		ShutdownTimeout:  sc.ShutdownTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddStorageService(services.NewStorageGCService(a.KV, 0))
	tree.AddSyncService(services.NewConnectivityService(a.Monitor))
	tree.AddSyncService(services.NewCoordinatorService(a.Coordinator))
	tree.AddAPIService(services.NewEventHubService(a.Hub))
	tree.AddAPIService(services.NewHTTPServerService(a.Server, sc.ShutdownTimeout))
	return tree, nil
}

// Close releases local storage.
func (a *App) Close() error {
	return a.KV.Close()
}
