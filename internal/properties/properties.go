// Package properties loads runtime configuration from the environment and an
// optional .env file.
package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
)

// Same lookup order as running from cmd/ or the repo root.
var envFiles = []string{"../../.env", "../.env", ".env"}

type Config struct {
	RootPath string

	DBDriver string
	DBDSN    string

	SigningKey string
	PublicURL  string
	URLTTL     time.Duration

	// Client IDs and secrets pair up by position and are tried in order.
	CopernicusClientIDs     []string
	CopernicusClientSecrets []string
	CopernicusTokenURL      string

	DiscordErrorNotificationURL   string
	DiscordSuccessNotificationURL string

	HTTPAddr    string
	CORSOrigins []string
}

// Load reads the first .env file found, then the environment. A missing .env
// file is not an error.
func Load() (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		RootPath:                      getenv("ROOT_PATH", "."),
		DBDriver:                      strings.ToLower(getenv("REGEN_DB_DRIVER", DriverSQLite)),
		DBDSN:                         os.Getenv("REGEN_DB_DSN"),
		SigningKey:                    os.Getenv("REGEN_SIGNING_KEY"),
		PublicURL:                     os.Getenv("REGEN_PUBLIC_URL"),
		CopernicusClientIDs:           splitList(os.Getenv("COPERNICUS_CLIENT_ID")),
		CopernicusClientSecrets:       splitList(os.Getenv("COPERNICUS_CLIENT_SECRET")),
		CopernicusTokenURL:            getenv("COPERNICUS_TOKEN_URL", DefaultTokenURL),
		DiscordErrorNotificationURL:   os.Getenv("DISCORD_ERROR_NOTIFICATION_URL"),
		DiscordSuccessNotificationURL: os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL"),
		HTTPAddr:                      getenv("REGEN_HTTP_ADDR", ":8080"),
		CORSOrigins:                   splitList(os.Getenv("REGEN_CORS_ORIGINS")),
	}

	ttl, err := time.ParseDuration(getenv("REGEN_URL_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REGEN_URL_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("REGEN_URL_TTL must be positive, got %s", ttl)
	}
	cfg.URLTTL = ttl

	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBDSN == "" {
			cfg.DBDSN = filepath.Join(cfg.RootPath, "data", "regen.db")
		}
	case DriverPostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("REGEN_DB_DSN is required for driver %s", DriverPostgres)
		}
	default:
		return nil, fmt.Errorf("unsupported REGEN_DB_DRIVER %q", cfg.DBDriver)
	}

	if len(cfg.CopernicusClientIDs) != len(cfg.CopernicusClientSecrets) {
		return nil, fmt.Errorf("got %d Copernicus client IDs but %d secrets",
			len(cfg.CopernicusClientIDs), len(cfg.CopernicusClientSecrets))
	}
	return cfg, nil
}

func (c *Config) ArtifactRoot() string { return filepath.Join(c.RootPath, "data", "ndvi") }
func (c *Config) ImageDir() string     { return filepath.Join(c.RootPath, "data", "images") }
func (c *Config) CacheDir() string     { return filepath.Join(c.RootPath, "data", "cache") }

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
