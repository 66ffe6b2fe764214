package config

import (
	"time"

	"dateresample/pkg/contracts"
)

// Application constants
const (
	AppName    = "dateresample"
	AppVersion = contracts.Version

	// EnvPrefix namespaces every environment variable.
	EnvPrefix = "RESAMPLE"
	// ConfigFileEnv names the variable holding an explicit config file.
	ConfigFileEnv = "RESAMPLE_CONFIG"
	// DefaultConfigFile is read when present and ConfigFileEnv is unset.
	DefaultConfigFile = "config/resample.yaml"

	// HTTP defaults
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxBodyBytes    = 32 << 20
	DefaultRateLimit       = 20 // requests per second
	DefaultBurstSize       = 40

	// Resample defaults
	DefaultAggregation     = "mean"
	DefaultMaxRequestRows  = 1_000_000
	DefaultLoadConcurrency = 4
	DefaultOutputDir       = "output"

	DefaultLogFile = "logs/resample.log"
)
