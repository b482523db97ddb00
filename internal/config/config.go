package config

import "time"

// IngestConfig is the root configuration for an ingestion instance.
type IngestConfig struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Ingest   IngestOptions  `yaml:"ingest"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// APIConfig holds Trading 212 API settings.
type APIConfig struct {
	Environment string        `yaml:"environment"` // "live" or "demo"
	BaseURL     string        `yaml:"base_url"`    // overrides the environment default when set
	APIKey      string        `yaml:"api_key"`
	APISecret   string        `yaml:"api_secret"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// DatabaseConfig holds the PostgreSQL connection for staging and curated data.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// IngestOptions holds pagination and pacing settings.
type IngestOptions struct {
	PageLimit         int           `yaml:"page_limit"`          // items requested per page
	MaxPages          int           `yaml:"max_pages"`           // hard ceiling per paginated resource
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"` // wait after a 429 before retrying the same page
	HistoryPagePause  time.Duration `yaml:"history_page_pause"`  // pause between history pages
	Interval          time.Duration `yaml:"interval"`            // periodic incremental run interval
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
