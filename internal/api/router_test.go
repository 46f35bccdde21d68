package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/app"
	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/database/testutil"
	"github.com/macrame/admin/internal/storage"
)

func testConfig() *app.Config {
	return &app.Config{
		Server:  app.ServerConfig{CORSOrigins: []string{"https://admin.example.com"}},
		Storage: app.StorageConfig{Driver: "memory"},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Uploads: app.UploadConfig{
			MaxSizeMB: 1,
			RateLimit: app.RateLimitConfig{Requests: 2, Window: time.Minute},
		},
	}
}

func newTestRouter(t *testing.T, cfg *app.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewServices(db, cfg, cache.NewDatabaseStore(db), storage.NewMemoryDisk("memory", ""))
	require.NoError(t, err)
	router, err := NewRouter(db, cfg, svc)
	require.NoError(t, err)
	return router, db
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, testConfig(), &Services{})
	require.Error(t, err)

	db := testutil.MustOpenTestDB(t)
	_, err = NewRouter(db, nil, &Services{})
	require.Error(t, err)
	_, err = NewRouter(db, testConfig(), nil)
	require.Error(t, err)

	_, err = NewServices(db, nil, nil, storage.NewMemoryDisk("memory", ""))
	require.Error(t, err)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "macrame_api_latency_seconds")

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), `"success":false`)
}

func TestRouterDisabledEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.Monitoring.Prometheus.Enabled = false
	cfg.Monitoring.Health.Enabled = false
	router, _ := newTestRouter(t, cfg)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "disabled")

	w = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/pages", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(router, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterRateLimitsUploads(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	upload := func() *httptest.ResponseRecorder {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("files", "a.txt")
		require.NoError(t, err)
		_, _ = part.Write([]byte("a"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/media/upload", &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return serve(router, req)
	}

	require.Equal(t, http.StatusCreated, upload().Code)
	require.Equal(t, http.StatusCreated, upload().Code)
	limited := upload()
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.True(t, strings.Contains(limited.Body.String(), "RATE_LIMIT_EXCEEDED"), limited.Body.String())

	// other routes are not limited
	for i := 0; i < 5; i++ {
		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/pages", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
