package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/t212-data/internal/config"
)

// BuildConnString builds the connection string for the ingestion database,
// the single PostgreSQL instance holding both the staging and core schemas.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
