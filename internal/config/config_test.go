package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "SELASKI_DB", "DATABASE_DSN", "REDIS_HOST", "REDIS_PORT",
	"REDIS_PASSWORD", "REDIS_DB", "LOG_LEVEL", "CORS_ORIGINS",
}

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.BasicConfig.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, "sqlite3", cfg.BasicConfig.Database)
	assert.Equal(t, "info", cfg.BasicConfig.LogLevel)
	assert.True(t, filepath.IsAbs(cfg.Databases["sqlite3"].DSN))
	assert.Equal(t, "selaski.db", filepath.Base(cfg.Databases["sqlite3"].DSN))
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 10, cfg.Redis.UserTTLMin)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadFileResolvesRelativeSQLitePath(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"basic_config": {"port": 8081, "database": "sqlite"},
		"databases": {"sqlite3": {"dsn": "data/app.db"}},
		"redis": {"host": "127.0.0.1", "port": 6380, "user_ttl_minutes": 3}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.BasicConfig.Port)
	assert.Equal(t, "sqlite3", cfg.BasicConfig.Database)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data/app.db"), cfg.Databases["sqlite3"].DSN)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 3, cfg.Redis.UserTTLMin)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"basic_config": {"port": 8081, "database": "mysql"},
		"databases": {"mysql": {"host": "db", "port": 3306, "username": "app", "dbname": "selaski"}}
	}`)
	t.Setenv("PORT", "9000")
	t.Setenv("SELASKI_DB", "postgresql")
	t.Setenv("DATABASE_DSN", "postgres://app@localhost/selaski")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.BasicConfig.Port)
	assert.Equal(t, "postgres", cfg.BasicConfig.Database)
	assert.Equal(t, "postgres://app@localhost/selaski", cfg.Databases["postgres"].DSN)
	assert.Equal(t, "selaski", cfg.Databases["mysql"].DBName)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.BasicConfig.LogLevel)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.BasicConfig.CORSOrigins)
}

func TestLoadUnknownDatabaseFails(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"basic_config": {"database": "mysql"}}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "database config for mysql not found")
}

func TestNormalizeDriver(t *testing.T) {
	assert.Equal(t, "sqlite3", NormalizeDriver(""))
	assert.Equal(t, "sqlite3", NormalizeDriver("SQLite"))
	assert.Equal(t, "postgres", NormalizeDriver("pgx"))
	assert.Equal(t, "mysql", NormalizeDriver(" MySQL "))
}
