package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/internal/app"
	"github.com/darasahq/darasa/pkg/logger"
)

func testBootstrapConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{Port: 0, LogLevel: "error"},
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   ":memory:",
		},
		Notifications: app.NotificationConfig{
			DefaultTimezone: "UTC",
			MaxAttempts:     3,
			BackoffBase:     time.Second,
			BackoffMax:      time.Minute,
			SweepSchedule:   "@every 1h",
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: false},
			Health:     app.HealthConfig{Enabled: true},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: "bootstrap-secret", Issuer: "darasa-test"},
		},
	}
}

func TestBootstrapRuntime(t *testing.T) {
	require.NoError(t, logger.Init("error"))

	cfg := testBootstrapConfig()
	stack, err := bootstrapRuntime(context.Background(), cfg, logger.WithModule("test"))
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(logger.WithModule("test")) })

	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.Store)
	require.NotNil(t, stack.Engine)
	require.NotNil(t, stack.Router)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	stack.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	stack.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnsureSecretsPresent(t *testing.T) {
	cfg := testBootstrapConfig()
	require.NoError(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "   "
	require.Error(t, ensureSecretsPresent(cfg))

	require.Error(t, ensureSecretsPresent(nil))
}
