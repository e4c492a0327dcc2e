package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Catalog.Backend)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, 5*time.Second, cfg.Settlement.StoreTimeout)
	assert.Equal(t, 3, cfg.Settlement.LedgerRetries)
	assert.Equal(t, "Empresa Demo SA de CV", cfg.Settlement.DefaultBuyer)
	assert.Equal(t, "@every 1m", cfg.Settlement.ReconcileCron)
	assert.False(t, cfg.UsesPostgres())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 9090, "allowed_origins": ["https://aquanexus.mx"]},
		"catalog": {"backend": "postgres"},
		"ledger": {"backend": "postgres"},
		"settlement": {"store_timeout": "2s", "serialize_transitions": true},
		"database": {"host": "db", "user": "aqua", "password": "pw", "db_name": "market"}
	}`)

	t.Setenv("AQUANEXUS_SERVER_PORT", "7070")
	t.Setenv("AQUANEXUS_SETTLEMENT_LEDGER_RETRIES", "5")
	t.Setenv("AQUANEXUS_REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"https://aquanexus.mx"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Settlement.StoreTimeout)
	assert.True(t, cfg.Settlement.SerializeTransitions)
	assert.Equal(t, 5, cfg.Settlement.LedgerRetries)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, "postgres://aqua:pw@db:5432/market?sslmode=disable", cfg.Database.GetDatabaseURL())
	assert.Equal(t, "0.0.0.0:7070", cfg.Server.GetServerAddr())
}

func TestLoadConfig_CommaSeparatedOrigins(t *testing.T) {
	t.Setenv("AQUANEXUS_SERVER_ALLOWED_ORIGINS", "https://a.mx, https://b.mx")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.mx", "https://b.mx"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"server": `))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("AQUANEXUS_CATALOG_BACKEND", "mongo")
	t.Setenv("AQUANEXUS_ARCHIVE_ENABLED", "true")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.backend")
	assert.Contains(t, err.Error(), "archive.bucket")
}
