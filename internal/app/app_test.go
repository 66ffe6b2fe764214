package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dateresample/internal/config"
	"dateresample/internal/shared/testutil"
	api "dateresample/pkg/contracts/api/v1"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Resample.OutputDir = t.TempDir()
	cfg.Server.Port = 0
	if mutate != nil {
		mutate(cfg)
	}
	logger, _ := testutil.NewTestLogger(t)

	app, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.OTelProviders.Shutdown(context.Background()) })
	return app
}

func serve(app *Application, method, target, contentType, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication(t *testing.T) {
	app := newTestApp(t, nil)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.ResampleService)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.Metrics)
	assert.Equal(t, ":0", app.Server.Addr)
	assert.Equal(t, config.DefaultWriteTimeout, app.Server.WriteTimeout)
}

func TestNewApplication_NilConfig(t *testing.T) {
	app, err := NewApplication(nil, nil)
	assert.Error(t, err)
	assert.Nil(t, app)
}

func TestApplication_Routes(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK},
		{"ready", http.MethodGet, "/api/health/ready", http.StatusOK},
		{"live", http.MethodGet, "/api/health/live", http.StatusOK},
		{"version", http.MethodGet, "/api/version", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/v1/resample", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.method, tt.target, "", "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestApplication_Resample(t *testing.T) {
	app := newTestApp(t, nil)

	body := `{
		"table": {
			"schema": [{"name": "day", "dtype": "date"}, {"name": "v", "dtype": "int"}],
			"rows": [["2024-03-05", 1], ["2024-03-28", 2], ["2024-04-02", 5]]
		},
		"derive": [{"op": "extract", "source": "day", "target": "month", "field": "month"}],
		"group_by": ["month"],
		"aggregate": {"total": {"source": "v", "func": "sum"}, "n": {"source": "v", "func": "count"}},
		"sort_by": ["month"]
	}`
	rec := serve(app, http.MethodPost, "/api/v1/resample", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.ResampleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Rows)

	total, err := resp.Data.Value(0, "total")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total.Int())
	total, err = resp.Data.Value(1, "total")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total.Int())

	// The request shows up in the scrape with its route pattern.
	scrape := serve(app, http.MethodGet, "/metrics", "", "")
	assert.Contains(t, scrape.Body.String(), "resample_runs_total")
	assert.Contains(t, scrape.Body.String(), `http_route="/api/v1/resample`)
}

func TestApplication_Resample_Rejections(t *testing.T) {
	app := newTestApp(t, func(c *config.Config) { c.Server.MaxBodyBytes = 256 })

	rec := serve(app, http.MethodPost, "/api/v1/resample", "text/plain", `{}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = serve(app, http.MethodPost, "/api/v1/resample", "application/json", `{"table":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_JSON")

	rec = serve(app, http.MethodPost, "/api/v1/resample", "application/json",
		`{"pad": "`+strings.Repeat("x", 512)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestApplication_RateLimit(t *testing.T) {
	app := newTestApp(t, func(c *config.Config) {
		c.Server.RateLimit.RPS = 0.001
		c.Server.RateLimit.Burst = 1
	})

	body := `{"table": {"schema": [{"name": "k", "dtype": "int"}], "rows": [[1]]}}`
	first := serve(app, http.MethodPost, "/api/v1/resample", "application/json", body)
	assert.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := serve(app, http.MethodPost, "/api/v1/resample", "application/json", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Health endpoints are outside the limited group.
	assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/api/health", "", "").Code)
}

func TestApplication_StartStop(t *testing.T) {
	app := newTestApp(t, func(c *config.Config) { c.Server.Port = 18089 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18089/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	assert.NoError(t, app.Stop(stopCtx))
}

func TestApplication_Run_StopsOnCancel(t *testing.T) {
	app := newTestApp(t, func(c *config.Config) { c.Server.Port = 18090 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not shut down")
	}
}
