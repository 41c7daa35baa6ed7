package app

import (
	"context"
	"fmt"
	stdhttp "net/http"

	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/auth"
	"github.com/barscout/barscout-server/internal/config"
	"github.com/barscout/barscout-server/internal/core"
	"github.com/barscout/barscout-server/internal/log"
	"github.com/barscout/barscout-server/internal/store"
	"github.com/barscout/barscout-server/internal/store/sqlite"
	transporthttp "github.com/barscout/barscout-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server    *stdhttp.Server
	cfg       *config.Config
	hub       *core.Hub
	registry  *core.Registry
	refresher *venueRefresher
	store     store.Store
	log       *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	// The registry lives for the whole process; a restart clears it.
	registry := core.NewRegistry()
	directory := core.NewVenueDirectory()

	hubOpts := []core.Option{core.WithLogger(log.Component(logger, "hub"))}
	if cfg.VerifyProximity {
		hubOpts = append(hubOpts, core.WithProximityVerifier(directory, cfg.ProximityRadiusMeters))
		logger.Info().Float64("radius_m", cfg.ProximityRadiusMeters).Msg("server-side proximity verification enabled")
	}
	hub := core.NewHub(registry, hubOpts...)

	refresher := newVenueRefresher(st, directory, cfg.VenueRefreshInterval, log.Component(logger, "venues"))
	server := transporthttp.NewServer(hub, authService, st, cfg, log.Component(logger, "http"),
		transporthttp.WithVenueChangeHook(refresher.Notify))

	return &App{
		server:    server,
		cfg:       cfg,
		hub:       hub,
		registry:  registry,
		refresher: refresher,
		store:     st,
		log:       logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	go a.refresher.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Msg("starting barscout server")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	a.registry.Reset()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
