package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/storyforge/internal/api"
	mw "github.com/kiranshivaraju/storyforge/internal/api/middleware"
	"github.com/kiranshivaraju/storyforge/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub cache ---

type stubCache struct{ count int64 }

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                          { return nil }
func (c *stubCache) Ping(_ context.Context) error                                      { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.count++
	return c.count, nil
}

var _ cache.Cache = (*stubCache)(nil)

func named(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, _ := mw.GetSessionID(r)
		w.Header().Set("X-Handler", name)
		w.Header().Set("X-Session", sessionID)
		w.WriteHeader(http.StatusOK)
	}
}

func fullDeps() api.Dependencies {
	return api.Dependencies{
		APIPrefix:            "/api",
		AllowedOrigins:       []string{"http://localhost:5173"},
		Session:              mw.NewSession(false),
		RateLimit:            mw.NewRateLimit(&stubCache{}, 2),
		HealthHandler:        named("health"),
		MetricsHandler:       named("metrics"),
		CreateStoryHandler:   named("create"),
		CompleteStoryHandler: named("complete"),
		GetJobHandler:        named("job"),
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	router := api.NewRouter(fullDeps())

	tests := []struct {
		method, path, handler string
	}{
		{http.MethodGet, "/health", "health"},
		{http.MethodGet, "/metrics", "metrics"},
		{http.MethodPost, "/api/stories/create", "create"},
		{http.MethodGet, "/api/stories/12/complete", "complete"},
		{http.MethodGet, "/api/jobs/01JBQ7K0000000000000000000", "job"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(router, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.handler, w.Header().Get("X-Handler"))
		})
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := api.NewRouter(fullDeps())

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/stories", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/stories/create", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_CustomPrefix(t *testing.T) {
	deps := fullDeps()
	deps.APIPrefix = "/game/v2"
	router := api.NewRouter(deps)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/game/v2/jobs/abc", nil))
	assert.Equal(t, "job", w.Header().Get("X-Handler"))

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CreateIssuesSessionCookie(t *testing.T) {
	router := api.NewRouter(fullDeps())

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/stories/create", nil))

	require.Len(t, w.Result().Cookies(), 1)
	cookie := w.Result().Cookies()[0]
	assert.Equal(t, mw.SessionCookieName, cookie.Name)
	assert.Equal(t, cookie.Value, w.Header().Get("X-Session"))
}

func TestRouter_ReadsDoNotIssueCookies(t *testing.T) {
	router := api.NewRouter(fullDeps())

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))
	assert.Empty(t, w.Result().Cookies())
}

func TestRouter_CreateIsRateLimited(t *testing.T) {
	router := api.NewRouter(fullDeps())

	for i := 0; i < 2; i++ {
		w := serve(router, httptest.NewRequest(http.MethodPost, "/api/stories/create", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/stories/create", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_NotImplemented(t *testing.T) {
	router := api.NewRouter(api.Dependencies{APIPrefix: "/api", Session: mw.NewSession(false)})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSAllowedOrigin(t *testing.T) {
	router := api.NewRouter(fullDeps())

	req := httptest.NewRequest(http.MethodOptions, "/api/stories/create", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := serve(router, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_CORSRejectedOrigin(t *testing.T) {
	router := api.NewRouter(fullDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := serve(router, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSNoOriginsConfigured(t *testing.T) {
	deps := fullDeps()
	deps.AllowedOrigins = nil
	router := api.NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(router, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
