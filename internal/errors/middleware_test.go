package errors

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"dateresample/internal/shared/testutil"
)

func TestErrorMiddleware_LogsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel slog.Level
	}{
		{name: "success logs info", status: http.StatusOK, wantLevel: slog.LevelInfo},
		{name: "client error logs warn", status: http.StatusBadRequest, wantLevel: slog.LevelWarn},
		{name: "server error logs error", status: http.StatusInternalServerError, wantLevel: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest("POST", "/api/v1/resample", strings.NewReader(`{"group_by":["year"]}`))
			mw.Handler(next).ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			testutil.AssertLogContains(t, logHandler, tt.wantLevel, "http request")
		})
	}
}

func TestErrorMiddleware_RecoversPanic(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	mw.Handler(next).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, logHandler.ContainsMessage("panic recovered"))
}

func TestSummarizeRequestBody(t *testing.T) {
	body := `{"table":{"schema":[],"rows":[["a"],["b"],["c"]]},"token":"abc"}`
	out := summarizeRequestBody([]byte(body))

	assert.Contains(t, out, `"rows":3`)
	assert.Contains(t, out, `"token":"[REDACTED]"`)
	assert.Equal(t, "not json", summarizeRequestBody([]byte("not json")))
}
