// Package app assembles the resample HTTP server: telemetry, services,
// middleware and routes, and manages its lifecycle.
//
// # Initialization Flow
//
//	1. The caller loads configuration and creates the logger
//	2. OpenTelemetry providers and resample metrics are initialized
//	3. Services are created with their dependencies
//	4. Middleware and routes are mounted on a chi router
//	5. The HTTP server is configured
//
// # Usage
//
//	app, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return app.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns after SIGINT, SIGTERM or cancellation of its context. Active
// requests are drained within the configured shutdown timeout and
// telemetry is flushed.
//
// # Error Handling
//
// Initialization errors are returned to the caller; the package never
// calls os.Exit.
package app
