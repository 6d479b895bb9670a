package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/polymarket-data/internal/config"
)

// BuildConnString assembles a PostgreSQL connection string from the
// database settings. The password is URL-escaped so special characters
// survive the round trip through pgx's URL parser.
func BuildConnString(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
