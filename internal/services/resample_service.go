package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"dateresample/internal/config"
	"dateresample/internal/dataprocessing"
	apperrors "dateresample/internal/errors"
	"dateresample/internal/exporter"
	"dateresample/internal/files"
	"dateresample/internal/infrastructure"
	"dateresample/internal/source"
	"dateresample/pkg/contracts/domain"
)

// Plan is the table-level part of a job: what to derive, how to group,
// and how to order the result.
type Plan struct {
	Derive    []dataprocessing.Derivation
	GroupBy   []string
	Aggregate dataprocessing.Aggregations
	SortBy    []string
}

// PlanOf extracts the plan of a job.
func PlanOf(job *config.JobSpec) Plan {
	return Plan{
		Derive:    job.Derive,
		GroupBy:   job.GroupBy,
		Aggregate: job.Aggregate,
		SortBy:    job.SortBy,
	}
}

// grouped reports whether the plan resamples at all. A plan with only
// derivations returns the derived table row for row.
func (p Plan) grouped() bool {
	return len(p.GroupBy) > 0 || len(p.Aggregate) > 0
}

// RunResult describes a finished run.
type RunResult struct {
	RunID       string
	Files       []string
	RowsIn      int
	Unparseable int
	Table       *domain.Table
	OutputPath  string
	Duration    time.Duration
}

// ResampleService loads, derives, resamples and exports tables.
type ResampleService struct {
	cfg        config.ResampleConfig
	discovery  *files.Discovery
	reader     *source.Reader
	normalizer *dataprocessing.Normalizer
	resampler  *dataprocessing.Resampler
	exporter   *exporter.Exporter
	tracer     trace.Tracer
	metrics    *infrastructure.ResampleMetrics
	logger     *slog.Logger
}

// NewResampleService creates a service. A nil exporter writes into
// cfg.OutputDir.
func NewResampleService(cfg config.ResampleConfig, exp *exporter.Exporter, logger *slog.Logger) *ResampleService {
	if logger == nil {
		logger = slog.Default()
	}
	if exp == nil {
		exp = exporter.NewExporter(files.NewManager(cfg.OutputDir, logger), logger)
	}
	if cfg.LoadConcurrency < 1 {
		cfg.LoadConcurrency = 1
	}

	logger.Info("ResampleService initialized",
		slog.String("default_aggregation", cfg.DefaultAggregation),
		slog.Int("max_request_rows", cfg.MaxRequestRows),
		slog.Int("load_concurrency", cfg.LoadConcurrency),
		slog.String("output_dir", cfg.OutputDir))

	return &ResampleService{
		cfg:        cfg,
		discovery:  files.NewDiscovery(""),
		reader:     source.NewReader(logger),
		normalizer: dataprocessing.NewNormalizer(logger),
		resampler:  dataprocessing.NewResampler(logger),
		exporter:   exp,
		tracer:     tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName),
		logger:     logger.With(slog.String("component", "resample_service")),
	}
}

// WithTelemetry sets the tracer and metrics used by later runs.
func (s *ResampleService) WithTelemetry(tracer trace.Tracer, metrics *infrastructure.ResampleMetrics) *ResampleService {
	if tracer != nil {
		s.tracer = tracer
	}
	s.metrics = metrics
	return s
}

// Run executes a job against inputs, which may be files, directories or
// glob patterns. The result is exported when the job names an output path.
func (s *ResampleService) Run(ctx context.Context, job *config.JobSpec, inputs []string) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString()}
	ctx, span := s.tracer.Start(ctx, "resample.run", trace.WithAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("job.name", job.Name),
	))
	defer span.End()

	start := time.Now()
	err := s.run(ctx, job, inputs, result)
	result.Duration = time.Since(start)

	groups := 0
	if result.Table != nil {
		groups = result.Table.NumRows()
	}
	infrastructure.RecordRun(ctx, s.metrics, infrastructure.RunRecord{
		Origin:      "cli",
		Files:       len(result.Files),
		RowsIn:      result.RowsIn,
		Groups:      groups,
		Unparseable: result.Unparseable,
		Duration:    result.Duration,
		Err:         err,
	})

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "Resample run failed",
			slog.String("run_id", result.RunID),
			slog.String("job", job.Name),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "Resample run completed",
		slog.String("run_id", result.RunID),
		slog.String("job", job.Name),
		slog.Int("files", len(result.Files)),
		slog.Int("rows_in", result.RowsIn),
		slog.Int("rows_out", groups),
		slog.Int("unparseable", result.Unparseable),
		slog.String("output", result.OutputPath),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (s *ResampleService) run(ctx context.Context, job *config.JobSpec, inputs []string, result *RunResult) error {
	if len(inputs) == 0 {
		return apperrors.NewAppError(apperrors.ErrTypeValidation, "at least one input is required", ErrNoInputs)
	}

	found, err := s.discovery.Expand(inputs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.NewAppError(apperrors.ErrTypeNotFound, "input not found", err)
		}
		return apperrors.NewAppError(apperrors.ErrTypeValidation, "invalid input", err)
	}
	for _, f := range found {
		result.Files = append(result.Files, f.Path)
	}

	t, err := s.LoadAll(ctx, result.Files, job.Source)
	if err != nil {
		return err
	}
	result.RowsIn = t.NumRows()

	job.ApplyDefaultAggregation(s.cfg.DefaultAggregation)
	out, stats, err := s.Process(ctx, t, PlanOf(job))
	if err != nil {
		return err
	}
	result.Unparseable = stats.Unparseable
	result.Table = out

	if job.Output.Path == "" {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "resample.export", trace.WithAttributes(
		attribute.String("output.path", job.Output.Path),
		attribute.String("output.format", job.Output.Format),
	))
	defer span.End()

	path, err := s.exporter.Export(ctx, out, job.Output.Path, job.Output.Format)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return err
	}
	result.OutputPath = path
	return nil
}

// LoadAll reads paths concurrently and concatenates them in the order
// given. All inputs must load to the same schema.
func (s *ResampleService) LoadAll(ctx context.Context, paths []string, opts source.Options) (*domain.Table, error) {
	if len(paths) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "at least one input is required", ErrNoInputs)
	}

	ctx, span := s.tracer.Start(ctx, "resample.load", trace.WithAttributes(
		attribute.Int("files", len(paths)),
	))
	defer span.End()

	tables := make([]*domain.Table, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.LoadConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			t, err := s.reader.Load(gctx, path, opts)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	if len(tables) == 1 {
		return tables[0], nil
	}
	merged, err := tables[0].Concat(tables[1:]...)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("%s: %v", ErrSchemaMismatch, err), ErrSchemaMismatch)
	}
	span.SetAttributes(attribute.Int("rows", merged.NumRows()))
	return merged, nil
}

// Process applies plan to t: derivations in order, then grouping when the
// plan groups or aggregates, then sorting.
func (s *ResampleService) Process(ctx context.Context, t *domain.Table, plan Plan) (*domain.Table, dataprocessing.NormalizeStats, error) {
	dctx, span := s.tracer.Start(ctx, "resample.derive", trace.WithAttributes(
		attribute.Int("steps", len(plan.Derive)),
	))
	out, stats, err := s.normalizer.Apply(dctx, t, plan.Derive)
	span.SetAttributes(attribute.Int("unparseable", stats.Unparseable))
	if err != nil {
		infrastructure.RecordError(dctx, err)
	}
	span.End()
	if err != nil {
		return nil, stats, err
	}

	if plan.grouped() {
		rctx, span := s.tracer.Start(ctx, "resample.aggregate", trace.WithAttributes(
			attribute.StringSlice("group_by", plan.GroupBy),
			attribute.Int("aggregations", len(plan.Aggregate)),
		))
		out, err = s.resampler.Resample(rctx, out, plan.GroupBy, withDefaultFunc(plan.Aggregate, s.cfg.DefaultAggregation))
		if err != nil {
			infrastructure.RecordError(rctx, err)
		} else {
			span.SetAttributes(attribute.Int("groups", out.NumRows()))
		}
		span.End()
		if err != nil {
			return nil, stats, err
		}
	}

	if len(plan.SortBy) > 0 {
		out, err = out.SortBy(plan.SortBy...)
		if err != nil {
			var notFound *domain.ColumnNotFoundError
			if errors.As(err, &notFound) {
				return nil, stats, apperrors.NewAppValidationError(fmt.Sprintf("sort column %q not found", notFound.Name)).
					WithContext("column", notFound.Name)
			}
			return nil, stats, err
		}
	}
	return out, stats, nil
}

// ResampleTable processes a table supplied by a caller rather than loaded
// from files. Tables above the configured row limit are refused.
func (s *ResampleService) ResampleTable(ctx context.Context, t *domain.Table, plan Plan) (*domain.Table, error) {
	ctx, span := s.tracer.Start(ctx, "resample.table", trace.WithAttributes(
		attribute.Int("rows", t.NumRows()),
	))
	defer span.End()

	start := time.Now()
	out, stats, err := s.resampleTable(ctx, t, plan)

	groups := 0
	if out != nil {
		groups = out.NumRows()
	}
	infrastructure.RecordRun(ctx, s.metrics, infrastructure.RunRecord{
		Origin:      "http",
		RowsIn:      t.NumRows(),
		Groups:      groups,
		Unparseable: stats.Unparseable,
		Duration:    time.Since(start),
		Err:         err,
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	s.logger.DebugContext(ctx, "Table resampled",
		slog.Int("rows_in", t.NumRows()),
		slog.Int("rows_out", groups),
		slog.Int("unparseable", stats.Unparseable))
	return out, nil
}

func (s *ResampleService) resampleTable(ctx context.Context, t *domain.Table, plan Plan) (*domain.Table, dataprocessing.NormalizeStats, error) {
	if limit := s.cfg.MaxRequestRows; limit > 0 && t.NumRows() > limit {
		return nil, dataprocessing.NormalizeStats{}, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("table has %d rows, the limit is %d", t.NumRows(), limit), ErrRowLimitExceeded).
			WithContext("limit", limit)
	}
	return s.Process(ctx, t, plan)
}

// withDefaultFunc returns aggs with fn filled in where no function is
// named. aggs itself is left untouched.
func withDefaultFunc(aggs dataprocessing.Aggregations, fn string) dataprocessing.Aggregations {
	if fn == "" {
		return aggs
	}
	out := make(dataprocessing.Aggregations, len(aggs))
	for name, agg := range aggs {
		if agg.Func == "" {
			agg.Func = fn
		}
		out[name] = agg
	}
	return out
}
