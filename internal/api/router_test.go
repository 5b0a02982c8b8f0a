package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/internal/app"
	iauth "github.com/darasahq/darasa/internal/auth"
	"github.com/darasahq/darasa/internal/database/testutil"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/darasahq/darasa/internal/realtime"
	"github.com/darasahq/darasa/pkg/logger"
)

func newTestRouter(t *testing.T, cfg *app.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, logger.Init("error"))

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-secret",
		Issuer:         "darasa-test",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	store, err := notify.NewStore(db)
	require.NoError(t, err)
	resolver, err := notify.NewResolver(store, "UTC")
	require.NoError(t, err)
	scheduler, err := notify.NewScheduler(db, notify.SchedulerConfig{})
	require.NoError(t, err)
	engine, err := notify.NewEngine(db, store, resolver, scheduler)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	router, err := NewRouter(db, jwtSvc, cfg, engine, store, realtime.NewHub())
	require.NoError(t, err)
	return router
}

func defaultRouterConfig() *app.Config {
	return &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t, defaultRouterConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/preferences/grade.posted", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, defaultRouterConfig())

	// Trigger a request so latency metrics exist.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "darasa_"))
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := newTestRouter(t, defaultRouterConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "route /nope not found")
}

func TestRouterHealthDisabled(t *testing.T) {
	cfg := defaultRouterConfig()
	cfg.Monitoring.Health.Enabled = false
	router := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
