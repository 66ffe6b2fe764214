package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dateresample/internal/config"
	"dateresample/internal/dataprocessing"
	apierrors "dateresample/internal/errors"
	"dateresample/internal/middleware"
	"dateresample/internal/services"
	"dateresample/internal/shared/testutil"
	api "dateresample/pkg/contracts/api/v1"
	"dateresample/pkg/contracts/domain"
)

type MockResampleService struct {
	mock.Mock
}

func (m *MockResampleService) ResampleTable(ctx context.Context, t *domain.Table, plan services.Plan) (*domain.Table, error) {
	args := m.Called(ctx, t, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Table), args.Error(1)
}

const monthlyRequest = `{
	"table": {
		"schema": [{"name": "date", "dtype": "string"}, {"name": "value", "dtype": "float"}],
		"rows": [["02/03/2024", 4], ["01/15/2024", 1.5], ["01/20/2024", 2.5], ["bad", 9]]
	},
	"derive": [
		{"op": "parse_date", "source": "date", "format": "MM/dd/yyyy"},
		{"op": "truncate", "source": "date", "target": "month", "unit": "month"}
	],
	"group_by": ["month"],
	"aggregate": {"avg": {"source": "value", "func": "mean"}},
	"sort_by": ["month"]
}`

func newRouter(t *testing.T, svc ResampleService) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validation := middleware.NewValidationMiddleware(logger, errorHandler, middleware.DefaultMaxBodySize)
	handler := NewResampleHandler(svc, validation, logger, errorHandler)

	r := chi.NewRouter()
	r.Mount("/api/v1/resample", handler.Routes())
	return r
}

func newService(t *testing.T, maxRows int) *services.ResampleService {
	t.Helper()
	cfg := config.Default().Resample
	cfg.OutputDir = t.TempDir()
	if maxRows > 0 {
		cfg.MaxRequestRows = maxRows
	}
	logger, _ := testutil.NewTestLogger(t)
	return services.NewResampleService(cfg, nil, logger)
}

func post(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resample", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestResampleHandler_Monthly(t *testing.T) {
	r := newRouter(t, newService(t, 0))

	rec := post(t, r, monthlyRequest)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.ResampleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	require.Equal(t, 3, resp.Rows)
	require.NotNil(t, resp.Data)

	assert.Equal(t, domain.Schema{
		{Name: "month", Dtype: domain.DtypeDate},
		{Name: "avg", Dtype: domain.DtypeFloat},
	}, resp.Data.Schema())

	// The unparseable row groups under a null month, which sorts first.
	month, err := resp.Data.Value(0, "month")
	require.NoError(t, err)
	assert.True(t, month.IsNull())

	month, err = resp.Data.Value(1, "month")
	require.NoError(t, err)
	assert.Equal(t, domain.CalendarDate{Year: 2024, Month: time.January, Day: 1}, month.Date())
	avg, err := resp.Data.Value(1, "avg")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, avg.Float(), 1e-9)

	month, err = resp.Data.Value(2, "month")
	require.NoError(t, err)
	assert.Equal(t, domain.CalendarDate{Year: 2024, Month: time.February, Day: 1}, month.Date())
}

func TestResampleHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		maxRows    int
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid json",
			body:       `{"table": `,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing table",
			body:       `{"group_by": ["k"]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "row does not match schema",
			body:       `{"table": {"schema": [{"name": "k", "dtype": "int"}], "rows": [[true]]}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "blank group key",
			body:       `{"table": {"schema": [{"name": "k", "dtype": "int"}], "rows": []}, "group_by": [" "]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown group key",
			body:       `{"table": {"schema": [{"name": "k", "dtype": "int"}], "rows": [[1]]}, "group_by": ["region"]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   string(apierrors.ErrTypeValidation),
		},
		{
			name:       "unsupported aggregation",
			body:       `{"table": {"schema": [{"name": "k", "dtype": "int"}], "rows": [[1]]}, "aggregate": {"m": {"source": "k", "func": "median"}}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   string(apierrors.ErrTypeUnsupported),
		},
		{
			name:       "row limit",
			maxRows:    1,
			body:       `{"table": {"schema": [{"name": "k", "dtype": "int"}], "rows": [[1], [2]]}, "aggregate": {"n": {"source": "k", "func": "count"}}}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "TOO_MANY_ROWS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, newService(t, tt.maxRows))
			rec := post(t, r, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, problemOf(t, rec)["error_code"])
		})
	}
}

func TestResampleHandler_MissingTableWithoutValidator(t *testing.T) {
	svc := new(MockResampleService)
	logger, _ := testutil.NewTestLogger(t)
	handler := NewResampleHandler(svc, nil, logger, apierrors.NewErrorHandler(logger, false))

	r := chi.NewRouter()
	r.Mount("/api/v1/resample", handler.Routes())

	for _, body := range []string{`{"group_by": ["k"]}`, `{"table": null}`} {
		rec := post(t, r, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, "VALIDATION_FAILED", problemOf(t, rec)["error_code"])
	}
	svc.AssertNotCalled(t, "ResampleTable", mock.Anything, mock.Anything, mock.Anything)
}

func TestResampleHandler_MapsPlan(t *testing.T) {
	svc := new(MockResampleService)
	r := newRouter(t, svc)

	out := testutil.MustTable(t, domain.Schema{{Name: "n", Dtype: domain.DtypeInt}}, []any{int64(2)})
	want := services.Plan{
		Derive: []dataprocessing.Derivation{
			{Op: dataprocessing.OpAddDays, Source: "d", Target: "d2", N: 3},
		},
		GroupBy: []string{"d2"},
		Aggregate: dataprocessing.Aggregations{
			"n": {Source: "d", Func: "count"},
		},
		SortBy: []string{"d2"},
	}
	svc.On("ResampleTable", mock.Anything, mock.AnythingOfType("*domain.Table"), want).Return(out, nil)

	rec := post(t, r, `{
		"table": {"schema": [{"name": "d", "dtype": "date"}], "rows": [["2024-01-01"]]},
		"derive": [{"op": "add_days", "source": "d", "target": "d2", "n": 3}],
		"group_by": ["d2"],
		"aggregate": {"n": {"source": "d", "func": "count"}},
		"sort_by": ["d2"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)

	var resp api.ResampleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Rows)
}

func TestResampleHandler_HidesStorageErrors(t *testing.T) {
	svc := new(MockResampleService)
	svc.On("ResampleTable", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apierrors.NewStorageError("disk full at /var/secret", nil))
	r := newRouter(t, svc)

	rec := post(t, r, `{"table": {"schema": [{"name": "k", "dtype": "int"}], "rows": [[1]]}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/var/secret")
}
