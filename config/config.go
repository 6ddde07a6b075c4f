package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Database configuration
	Database struct {
		// Path to the SQLite database file
		Path string `env:"DATABASE_PATH" envDefault:"database/fmr.db"`
	}

	// Server configuration
	Server struct {
		// Port the API server listens on
		Port int `env:"SERVER_PORT" envDefault:"5250"`

		// Origins allowed to call the API, comma separated. "*" allows all.
		AllowedOrigins []string `env:"SERVER_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	// Load configuration
	Load struct {
		// Source file read by reload jobs
		SourceFile string `env:"LOAD_SOURCE_FILE" envDefault:"fmr_data.json"`

		// Number of records written per transaction
		BatchSize int `env:"LOAD_BATCH_SIZE" envDefault:"500"`

		// Share of records allowed to fail validation before a run aborts
		MaxRejectRatio float64 `env:"LOAD_MAX_REJECT_RATIO" envDefault:"0.05"`

		// Number of reload jobs that may wait behind the running one
		QueueSize int `env:"LOAD_QUEUE_SIZE" envDefault:"4"`
	}

	// Query configuration
	Query struct {
		// Page size used when a drill-down request does not set one
		DefaultPageSize int `env:"QUERY_DEFAULT_PAGE_SIZE" envDefault:"50"`

		// Hard upper bound on the drill-down page size
		MaxPageSize int `env:"QUERY_MAX_PAGE_SIZE" envDefault:"500"`

		// Serve repeated pivot requests from memory until the next load
		CacheEnabled bool `env:"QUERY_CACHE_ENABLED" envDefault:"true"`
	}

	// Logging configuration
	Logging struct {
		// Log level: trace, debug, info, warn or error
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
