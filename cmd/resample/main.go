// Command resample derives date columns and resamples tables, either as a
// one-shot job over files or as an HTTP service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"dateresample/internal/app"
	"dateresample/internal/config"
	"dateresample/internal/exporter"
	"dateresample/internal/infrastructure"
	"dateresample/internal/services"
	"dateresample/pkg/contracts"
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string `name:"config" short:"c" type:"path" help:"Config file (default: $RESAMPLE_CONFIG or config/resample.yaml)"`
	LogLevel string `name:"log-level" help:"Override the configured log level (debug, info, warn, error)"`
}

// CLI defines the command-line interface using Kong
type CLI struct {
	Globals

	Run     RunCmd     `cmd:"" help:"Run a resample job over input files"`
	Serve   ServeCmd   `cmd:"" help:"Serve the resample HTTP API"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// cliEnv is bound into every command's Run method.
type cliEnv struct {
	ctx     context.Context
	stdout  io.Writer
	stderr  io.Writer
	globals *Globals
}

// setup loads the configuration and installs a logger on stderr, which
// keeps stdout free for command output. Callers defer
// infrastructure.CloseLogFile once setup succeeds.
func (e *cliEnv) setup() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if e.globals.Config != "" {
		cfg, err = config.LoadFile(e.globals.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	if e.globals.LogLevel != "" {
		cfg.Logging.Level = e.globals.LogLevel
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging, e.stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// RunCmd executes a job file.
type RunCmd struct {
	Job    string   `name:"job" short:"j" required:"" type:"existingfile" help:"Job file (.yaml, .yml or .toml)"`
	Out    string   `name:"out" short:"o" help:"Output path; overrides the job's output.path"`
	Format string   `name:"format" short:"f" help:"Output format (csv, json, xlsx, parquet); overrides the job's output.format"`
	Inputs []string `arg:"" required:"" help:"Input files, directories or glob patterns"`
}

func (r *RunCmd) Run(env *cliEnv) error {
	cfg, logger, err := env.setup()
	if err != nil {
		return err
	}
	defer infrastructure.CloseLogFile()

	job, err := config.LoadJob(r.Job)
	if err != nil {
		return err
	}
	if r.Out != "" {
		job.Output.Path = r.Out
	}
	if r.Format != "" {
		job.Output.Format = r.Format
	}
	if err := job.Validate(); err != nil {
		return err
	}

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.TraceWriter = env.stderr
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to flush telemetry", slog.String("error", err.Error()))
		}
	}()

	metrics, err := infrastructure.NewResampleMetrics(providers.Meter)
	if err != nil {
		return err
	}

	svc := services.NewResampleService(cfg.Resample, nil, logger).WithTelemetry(providers.Tracer, metrics)
	// Every log line of the job carries one trace_id.
	result, err := svc.Run(infrastructure.EnsureTraceID(env.ctx), job, r.Inputs)
	if err != nil {
		return err
	}

	if result.OutputPath == "" {
		return exporter.NewCSVWriterWithOptions(exporter.WriteOptions{FloatDecimals: -1}).Write(env.stdout, result.Table)
	}
	fmt.Fprintf(env.stdout, "%d rows from %d files (%d unparseable dates) written to %s\n",
		result.Table.NumRows(), len(result.Files), result.Unparseable, result.OutputPath)
	return nil
}

// ServeCmd runs the HTTP API until interrupted.
type ServeCmd struct {
	Port int `name:"port" short:"p" help:"Override the configured port"`
}

func (s *ServeCmd) Run(env *cliEnv) error {
	cfg, logger, err := env.setup()
	if err != nil {
		return err
	}
	defer infrastructure.CloseLogFile()
	if s.Port > 0 {
		cfg.Server.Port = s.Port
	}

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	return application.Run(env.ctx)
}

// VersionCmd prints version information
type VersionCmd struct{}

func (v *VersionCmd) Run(env *cliEnv) error {
	fmt.Fprintln(env.stdout, contracts.GetFullVersionString())
	return nil
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("resample"),
		kong.Description("Derive date columns and resample tables by group"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&cliEnv{ctx: ctx, stdout: stdout, stderr: stderr, globals: &cli.Globals})
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "resample: %v\n", err)
		os.Exit(1)
	}
}
