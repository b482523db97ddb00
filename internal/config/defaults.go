package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLiveURL           = "https://live.trading212.com/api/v0"
	DefaultDemoURL           = "https://demo.trading212.com/api/v0"
	DefaultEnvironment       = "demo"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 5
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultPageLimit         = 50
	DefaultMaxPages          = 1000
	DefaultRateLimitCooldown = 30 * time.Second
	DefaultHistoryPagePause  = 12 * time.Second
	DefaultInterval          = 1 * time.Hour
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
)

func (c *IngestConfig) applyDefaults() {
	// API defaults
	if c.API.Environment == "" {
		c.API.Environment = DefaultEnvironment
	}
	if c.API.BaseURL == "" {
		switch c.API.Environment {
		case "live":
			c.API.BaseURL = DefaultLiveURL
		default:
			c.API.BaseURL = DefaultDemoURL
		}
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Ingest defaults
	if c.Ingest.PageLimit == 0 {
		c.Ingest.PageLimit = DefaultPageLimit
	}
	if c.Ingest.MaxPages == 0 {
		c.Ingest.MaxPages = DefaultMaxPages
	}
	if c.Ingest.RateLimitCooldown == 0 {
		c.Ingest.RateLimitCooldown = DefaultRateLimitCooldown
	}
	if c.Ingest.HistoryPagePause == 0 {
		c.Ingest.HistoryPagePause = DefaultHistoryPagePause
	}
	if c.Ingest.Interval == 0 {
		c.Ingest.Interval = DefaultInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
