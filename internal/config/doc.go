// Package config loads application settings and resample job files.
//
// # Application configuration
//
// Settings are resolved in three layers, later layers winning:
//
//	1. Defaults (see Default)
//	2. A YAML file: $RESAMPLE_CONFIG, or config/resample.yaml when present
//	3. Environment variables with the RESAMPLE_ prefix
//
// Environment variables mirror the YAML structure:
//
//	RESAMPLE_SERVER_PORT=8080
//	RESAMPLE_LOGGING_LEVEL=debug
//	RESAMPLE_RESAMPLE_MAX_REQUEST_ROWS=100000
//	RESAMPLE_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Job files
//
// A job describes one resample run: how to read the inputs, the
// derivations to apply, the grouping and aggregations, the output order
// and where to write the result. Jobs are YAML (.yaml, .yml) or TOML
// (.toml):
//
//	name: yearly-means
//	source:
//	  types: {value: float}
//	derive:
//	  - {op: parse_date, source: date, format: MM/dd/yyyy}
//	  - {op: extract, source: date, field: year}
//	group_by: [year]
//	aggregate:
//	  mean_value: {source: value, func: mean}
//	sort_by: [year]
//	output: {path: yearly.csv}
//
// Unknown keys are rejected so that a misspelled option never silently
// falls back to a default.
package config
