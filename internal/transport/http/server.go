package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/auth"
	"github.com/barscout/barscout-server/internal/config"
	"github.com/barscout/barscout-server/internal/core"
	"github.com/barscout/barscout-server/internal/store"
)

// ServerOption configures NewServer.
type ServerOption func(*serverOptions)

type serverOptions struct {
	onVenueChange func(context.Context)
}

// WithVenueChangeHook registers a callback run after the venue catalogue changes.
func WithVenueChangeHook(fn func(context.Context)) ServerOption {
	return func(o *serverOptions) {
		o.onVenueChange = fn
	}
}

// NewServer builds an HTTP server with the REST API, the realtime endpoint and metrics.
// /ws is served from a plain mux in front of the gin router.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger, opts ...ServerOption) *stdhttp.Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, hub, logger)
	venueHandlers := NewVenueHandlers(st, hub, o.onVenueChange, logger)
	queueHandlers := NewQueueHandlers(st, logger)
	popularityHandlers := NewPopularityHandlers(hub)
	adminHandlers := NewAdminHandlers(venueHandlers, logger)

	api := router.Group("/api")
	{
		api.POST("/auth/register", apiHandlers.Register)
		api.POST("/auth/login", apiHandlers.Login)

		api.GET("/popularity", popularityHandlers.Snapshot)

		api.GET("/venues", venueHandlers.ListVenues)
		api.GET("/venues/locations", venueHandlers.ListLocations)
		api.GET("/venues/:id", venueHandlers.GetVenue)
	}

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))
	{
		protected.GET("/me", userHandlers.Me)

		protected.POST("/venues", venueHandlers.CreateVenue)
		protected.POST("/venues/:id/rate", venueHandlers.Rate)
		protected.POST("/venues/:id/cover", venueHandlers.ReportCoverFee)
		protected.POST("/venues/:id/traffic", venueHandlers.ReportTraffic)

		protected.GET("/queue/:venueId", queueHandlers.Status)
		protected.POST("/queue/:venueId", queueHandlers.Join)
		protected.DELETE("/queue/:venueId", queueHandlers.Leave)
	}

	admin := protected.Group("/admin")
	admin.Use(AdminMiddleware(logger))
	{
		admin.GET("/venues", adminHandlers.ListVenues)
		admin.POST("/venues", adminHandlers.CreateVenue)
	}

	// The realtime endpoint bypasses gin: its ResponseWriter refuses to hijack
	// once the upgrade headers are written.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg.JWTRequired, cfg.MaxMessageBytes, cfg.WSRateLimit, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
