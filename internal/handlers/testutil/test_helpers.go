package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/macrame/admin/internal/api"
	"github.com/macrame/admin/internal/app"
	"github.com/macrame/admin/internal/cache"
	sharedtestutil "github.com/macrame/admin/internal/database/testutil"
	"github.com/macrame/admin/internal/storage"
	"github.com/macrame/admin/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database and an
// in-memory disk.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Disk     *storage.MemoryDisk
	Cache    *cache.DatabaseStore
	Services *api.Services
	Router   *gin.Engine
}

// NewEnv provisions a fresh handler test environment with migrations and seed data
// applied. Options may adjust the config before the router is built.
func NewEnv(t *testing.T, opts ...func(*app.Config)) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Cache:   app.CacheConfig{RoutesTTL: time.Minute},
		Storage: app.StorageConfig{Driver: "memory"},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Uploads: app.UploadConfig{
			MaxSizeMB: 8,
			RateLimit: app.RateLimitConfig{Requests: 100, Window: time.Minute},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	disk := storage.NewMemoryDisk("memory", "https://cdn.test/uploads")
	store := cache.NewDatabaseStore(db)

	svc, err := api.NewServices(db, cfg, store, disk)
	require.NoError(t, err)

	router, err := api.NewRouter(db, cfg, svc)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Disk:     disk,
		Cache:    store,
		Services: svc,
		Router:   router,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, JSON encoding body when
// present.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Upload posts a multipart form with one "files" part per entry of files, keyed by
// filename.
func (e *Env) Upload(path string, files map[string]string, fields map[string]string) *httptest.ResponseRecorder {
	e.T.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(e.T, err)
		_, err = part.Write([]byte(content))
		require.NoError(e.T, err)
	}
	for key, value := range fields {
		require.NoError(e.T, writer.WriteField(key, value))
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
