package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/macrame/admin/internal/cache"
	"github.com/macrame/admin/internal/database/testutil"
)

func limitedRouter(store RateStore, limit int, window time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(store, limit, window))
	r.POST("/upload", func(c *gin.Context) { c.String(http.StatusOK, "stored") })
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", nil))
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryRateStore().(*memoryRateStore)
	store.clock = func() time.Time { return now }
	r := limitedRouter(store, 2, time.Minute)

	for i := 0; i < 2; i++ {
		w := hit(r)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := hit(r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	now = now.Add(61 * time.Second)
	require.Equal(t, http.StatusOK, hit(r).Code)
}

func TestRateLimitWithCacheStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	r := limitedRouter(NewCacheRateStore(cache.NewDatabaseStore(db)), 1, time.Minute)

	require.Equal(t, http.StatusOK, hit(r).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r).Code)
	require.Nil(t, NewCacheRateStore(nil))
}

type failingRateStore struct{}

func (failingRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store offline")
}

func TestRateLimitFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := limitedRouter(failingRateStore{}, 1, time.Minute)
	require.Equal(t, http.StatusOK, hit(r).Code)
	require.Equal(t, http.StatusOK, hit(r).Code)
}
