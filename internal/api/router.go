package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/internal/app"
	iauth "github.com/darasahq/darasa/internal/auth"
	"github.com/darasahq/darasa/internal/handlers"
	"github.com/darasahq/darasa/internal/middleware"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/darasahq/darasa/internal/realtime"
)

// NewRouter builds the Gin engine, wires middleware and registers core routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, engine *notify.Engine, store *notify.Store, hub *realtime.Hub) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if engine == nil {
		return nil, fmt.Errorf("notification engine must be provided")
	}
	if store == nil {
		return nil, fmt.Errorf("preference store must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	registerHealthRoutes(r, cfg)

	// Protected routes
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	notificationHandler, err := handlers.NewNotificationHandler(db, engine, hub)
	if err != nil {
		return nil, err
	}
	registerNotificationRoutes(api, notificationHandler)

	preferenceHandler, err := handlers.NewPreferenceHandler(store)
	if err != nil {
		return nil, err
	}
	registerPreferenceRoutes(api, preferenceHandler)

	if hub != nil {
		realtimeHandler, err := handlers.NewRealtimeHandler(hub, jwt)
		if err != nil {
			return nil, err
		}
		// Token arrives via query parameter, so the route stays outside the
		// bearer-header middleware.
		r.GET("/api/stream", realtimeHandler.Stream)
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
