package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightbrief/internal/briefing"
	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/internal/config"
	"github.com/yegors/flightbrief/internal/settings"
	"github.com/yegors/flightbrief/internal/storage/sqlite"
	"github.com/yegors/flightbrief/pkg/logger"
)

const adminToken = "s3cret"

type fakeBriefer struct {
	last   briefing.Request
	result *briefing.Result
	err    error
}

func (f *fakeBriefer) Brief(ctx context.Context, req briefing.Request) (*briefing.Result, error) {
	f.last = req
	return f.result, f.err
}

type testAPI struct {
	handler  http.Handler
	briefer  *fakeBriefer
	attempts *sqlite.AttemptStorage
}

func newTestAPI(t *testing.T, mutate func(*config.ServerConfig)) *testAPI {
	t.Helper()
	log := logger.NewNop()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	attempts, err := sqlite.NewAttemptStorage(db, log)
	require.NoError(t, err)
	store, err := sqlite.NewSettingsStorage(db, log)
	require.NoError(t, err)

	manager := settings.NewManager(store, settings.Defaults{
		RateLimitCalls:  5,
		RateLimitPeriod: 5 * time.Minute,
		AnalysisModel:   "gpt-4o-mini",
	}, time.Minute, log)

	briefer := &fakeBriefer{result: &briefing.Result{ICAO: "KBWI", AirportName: "Baltimore"}}

	cfg := config.Default().Server
	cfg.AdminToken = adminToken
	if mutate != nil {
		mutate(&cfg)
	}

	h := NewHandler(Deps{
		Briefings: briefer,
		Attempts:  attempts,
		Settings:  manager,
		Clock:     clock.NewVirtual(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)),
	}, log)

	return &testAPI{
		handler:  NewRouter(h, cfg, log).Routes(),
		briefer:  briefer,
		attempts: attempts,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

var admin = map[string]string{"Authorization": "Bearer " + adminToken}

func TestAnalyze(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPost, "/api/analyze", `{"icao":"bwi","plane_size":"Cessna 172"}`, map[string]string{
		"X-Client-ID":     "client-1",
		"X-Forwarded-For": "198.51.100.4, 10.0.0.1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	result := decode[briefing.Result](t, rec)
	assert.Equal(t, "KBWI", result.ICAO)

	assert.Equal(t, "bwi", a.briefer.last.Code)
	assert.Equal(t, "Cessna 172", a.briefer.last.Aircraft)
	assert.Equal(t, "client-1", a.briefer.last.ClientID)
	assert.Equal(t, "198.51.100.4", a.briefer.last.IP)
}

func TestAnalyzeDefaultsClientID(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPost, "/api/analyze", `{"icao":"KBWI"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UNKNOWN", a.briefer.last.ClientID)
	assert.NotEmpty(t, a.briefer.last.IP)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid", briefing.ErrInvalidInput, http.StatusBadRequest, briefing.ErrInvalidInput.Error()},
		{"paused", &briefing.PausedError{Message: "Down for maintenance"}, http.StatusServiceUnavailable, "Down for maintenance"},
		{"rate limited", briefing.ErrRateLimited, http.StatusTooManyRequests, "Rate limit exceeded."},
		{"no weather", briefing.ErrNoWeather, http.StatusNotFound, briefing.ErrNoWeather.Error()},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, nil)
			a.briefer.err = tt.err

			rec := a.do(t, http.MethodPost, "/api/analyze", `{"icao":"KBWI"}`, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestAnalyzeRejectsBadBody(t *testing.T) {
	a := newTestAPI(t, nil)
	rec := a.do(t, http.MethodPost, "/api/analyze", `{"icao":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystemStatusFollowsSettings(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/api/system-status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.Equal(t, false, status["banner_enabled"])

	rec = a.do(t, http.MethodPut, "/api/admin/settings", `{"banner_enabled":true,"banner_message":"Runway 10 closed","rate_limit_calls":10}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	values := decode[map[string]string](t, rec)
	assert.Equal(t, "true", values[settings.KeyBannerEnabled])
	assert.Equal(t, "10", values[settings.KeyRateLimitCalls])

	rec = a.do(t, http.MethodGet, "/api/system-status", "", nil)
	status = decode[map[string]any](t, rec)
	assert.Equal(t, true, status["banner_enabled"])
	assert.Equal(t, "Runway 10 closed", status["banner_message"])
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodPut, "/api/admin/settings", `{"no_such_key":"x"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/admin/settings", `{"rate_limit_calls":"many"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/admin/settings", `{"banner_message":["a"]}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAuth(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/api/admin/logs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/logs", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/logs?token="+adminToken, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	a := newTestAPI(t, func(c *config.ServerConfig) { c.AdminToken = "" })

	rec := a.do(t, http.MethodGet, "/api/admin/logs", "", map[string]string{"Authorization": "Bearer "})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminLogsAndStats(t *testing.T) {
	a := newTestAPI(t, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 11, 0, 0, 0, time.UTC)

	for i, outcome := range []briefing.Outcome{briefing.OutcomeSuccess, briefing.OutcomeCacheHit, briefing.OutcomeRateLimited} {
		require.NoError(t, a.attempts.Record(ctx, &briefing.Attempt{
			Timestamp:    now.Add(time.Duration(i) * time.Minute),
			IP:           "203.0.113.7",
			InputCode:    "BWI",
			ResolvedCode: "KBWI",
			Outcome:      outcome,
		}))
	}

	rec := a.do(t, http.MethodGet, "/api/admin/logs", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]briefing.Attempt](t, rec), 3)

	rec = a.do(t, http.MethodGet, "/api/admin/logs?limit=2", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]briefing.Attempt](t, rec)
	require.Len(t, logs, 2)
	assert.Equal(t, briefing.OutcomeRateLimited, logs[0].Outcome)

	rec = a.do(t, http.MethodGet, "/api/admin/logs?limit=zero", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/stats", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]sqlite.WindowStats](t, rec)
	require.Contains(t, stats, "24h")
	assert.Equal(t, 3, stats["24h"].Total)
	assert.Equal(t, 1, stats["24h"].Breakdown.Limit)
}

func TestAdminLiveWithoutFeed(t *testing.T) {
	a := newTestAPI(t, nil)
	rec := a.do(t, http.MethodGet, "/api/admin/live", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, nil)
	rec := a.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["paused"])
}

func TestCORS(t *testing.T) {
	a := newTestAPI(t, func(c *config.ServerConfig) { c.CORSAllowedOrigins = []string{"https://brief.example"} })

	rec := a.do(t, http.MethodOptions, "/api/analyze", "", map[string]string{
		"Origin":                        "https://brief.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://brief.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Client-ID")

	rec = a.do(t, http.MethodGet, "/api/health", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	a := newTestAPI(t, func(c *config.ServerConfig) { c.StaticFilesDir = dir })

	rec := a.do(t, http.MethodGet, "/app.js", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app")

	rec = a.do(t, http.MethodGet, "/admin/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<html>app</html>")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")

	rec = a.do(t, http.MethodGet, "/missing.css", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[map[string]string](t, rec)["error"])
}
