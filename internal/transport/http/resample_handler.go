package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"dateresample/internal/dataprocessing"
	apierrors "dateresample/internal/errors"
	"dateresample/internal/services"
	api "dateresample/pkg/contracts/api/v1"
)

// StructValidator validates decoded request bodies.
type StructValidator interface {
	ValidateStruct(v interface{}) error
}

// ResampleHandler serves table resampling over HTTP.
type ResampleHandler struct {
	service      ResampleService
	validator    StructValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewResampleHandler creates a resample handler.
func NewResampleHandler(service ResampleService, validator StructValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ResampleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResampleHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "resample_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the resample routes.
func (h *ResampleHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/", h.Resample)
	return r
}

// Resample handles POST /api/v1/resample.
func (h *ResampleHandler) Resample(w http.ResponseWriter, r *http.Request) {
	var req api.ResampleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if h.validator != nil {
		if err := h.validator.ValidateStruct(&req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}

	if req.Table == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("table", "table is required"))
		return
	}

	out, err := h.service.ResampleTable(r.Context(), req.Table, planFromRequest(&req))
	if err != nil {
		if errors.Is(err, services.ErrRowLimitExceeded) {
			err = apierrors.ErrTooManyRows
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "Resample request served",
		slog.Int("rows_in", req.Table.NumRows()),
		slog.Int("rows_out", out.NumRows()))

	render.JSON(w, r, api.ResampleResponse{
		Status: "success",
		Rows:   out.NumRows(),
		Data:   out,
	})
}

// planFromRequest maps the wire request onto a service plan.
func planFromRequest(req *api.ResampleRequest) services.Plan {
	plan := services.Plan{
		GroupBy: req.GroupBy,
		SortBy:  req.SortBy,
	}
	for _, step := range req.Derive {
		plan.Derive = append(plan.Derive, dataprocessing.Derivation{
			Op:      dataprocessing.DerivationOp(step.Op),
			Source:  step.Source,
			Target:  step.Target,
			Format:  step.Format,
			Field:   step.Field,
			Weekday: step.Weekday,
			N:       step.N,
			Unit:    step.Unit,
			Start:   step.Start,
			End:     step.End,
		})
	}
	if len(req.Aggregate) > 0 {
		plan.Aggregate = make(dataprocessing.Aggregations, len(req.Aggregate))
		for name, agg := range req.Aggregate {
			plan.Aggregate[name] = dataprocessing.Aggregation{Source: agg.Source, Func: agg.Func}
		}
	}
	return plan
}
