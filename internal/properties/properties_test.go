package properties

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"ROOT_PATH", "REGEN_DB_DRIVER", "REGEN_DB_DSN", "REGEN_SIGNING_KEY", "REGEN_PUBLIC_URL",
	"REGEN_URL_TTL", "COPERNICUS_CLIENT_ID", "COPERNICUS_CLIENT_SECRET", "COPERNICUS_TOKEN_URL",
	"DISCORD_ERROR_NOTIFICATION_URL", "DISCORD_SUCCESS_NOTIFICATION_URL", "REGEN_HTTP_ADDR",
	"REGEN_CORS_ORIGINS",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.RootPath)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, filepath.Join(".", "data", "regen.db"), cfg.DBDSN)
	assert.Equal(t, 15*time.Minute, cfg.URLTTL)
	assert.Equal(t, DefaultTokenURL, cfg.CopernicusTokenURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.CopernicusClientIDs)
	assert.Equal(t, filepath.Join(".", "data", "ndvi"), cfg.ArtifactRoot())
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROOT_PATH", "/srv/regen")
	t.Setenv("REGEN_DB_DRIVER", "Postgres")
	t.Setenv("REGEN_DB_DSN", "postgres://regen@db/regen")
	t.Setenv("REGEN_URL_TTL", "1h")
	t.Setenv("COPERNICUS_CLIENT_ID", "a, b")
	t.Setenv("COPERNICUS_CLIENT_SECRET", "sa,sb")
	t.Setenv("REGEN_CORS_ORIGINS", "http://localhost:3000")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://regen@db/regen", cfg.DBDSN)
	assert.Equal(t, time.Hour, cfg.URLTTL)
	assert.Equal(t, []string{"a", "b"}, cfg.CopernicusClientIDs)
	assert.Equal(t, []string{"sa", "sb"}, cfg.CopernicusClientSecrets)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "/srv/regen/data/cache", cfg.CacheDir())
}

func TestFromEnvErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad ttl":          {"REGEN_URL_TTL": "soon"},
		"negative ttl":     {"REGEN_URL_TTL": "-1m"},
		"unknown driver":   {"REGEN_DB_DRIVER": "mysql"},
		"postgres no dsn":  {"REGEN_DB_DRIVER": "postgres"},
		"unpaired secrets": {"COPERNICUS_CLIENT_ID": "a,b", "COPERNICUS_CLIENT_SECRET": "s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("REGEN_HTTP_ADDR")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REGEN_HTTP_ADDR=:9999\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}
