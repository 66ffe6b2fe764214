// Package services implements the business logic layer of dateresample.
// It sits between the transports (CLI and HTTP) and the table packages,
// so that a run is assembled the same way no matter how it was started.
//
// # Resample runs
//
// ResampleService drives one run through its stages:
//
//	inputs --files.Discovery--> paths --source.Reader--> table
//	table  --dataprocessing.Normalizer--> derived table
//	       --dataprocessing.Resampler--> grouped table
//	       --domain.Table.SortBy--> ordered table
//	       --exporter.Exporter--> output file
//
// Inputs are loaded concurrently with a bounded errgroup and concatenated
// in input order. Every stage runs under its own span, and the run as a
// whole is recorded in the resample metrics.
//
// # Health
//
// HealthService reports liveness, readiness (the output directory is
// writable) and build information for the HTTP health endpoints.
package services
