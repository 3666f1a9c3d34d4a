package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ENVIRONMENT", "DATABASE_URL", "STORE_DRIVER", "MEMORY_SEED_FILE", "FIREBASE_CREDENTIALS_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SCAN_INTERVAL_SECONDS", "SCAN_TIMEOUT_SECONDS",
	"ALIGN_TO_MINUTE", "ALARM_TIMEZONE", "WS_PING_INTERVAL_SECONDS", "WS_WRITE_TIMEOUT_SECONDS",
	"LOG_LEVEL", "LOG_FORMAT",
}

func clearConfigEnv(t *testing.T) {
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8998", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 60, cfg.ScanIntervalSeconds)
	assert.Equal(t, 20, cfg.ScanTimeoutSeconds)
	assert.True(t, cfg.AlignToMinute)
	assert.Equal(t, time.Minute, cfg.ScanInterval())
	assert.Equal(t, 20*time.Second, cfg.ScanTimeout())
	assert.Equal(t, 30*time.Second, cfg.WSPingInterval())
	assert.Equal(t, 10*time.Second, cfg.WSWriteTimeout())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SCAN_INTERVAL_SECONDS", "30")
	t.Setenv("ALIGN_TO_MINUTE", "false")
	t.Setenv("ALARM_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 30, cfg.ScanIntervalSeconds)
	assert.False(t, cfg.AlignToMinute)
	assert.Equal(t, "console", cfg.LogFormat)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:         StoreDriverPostgres,
			DatabaseURL:         "postgres://localhost/medcontrol",
			ScanIntervalSeconds: 60,
			ScanTimeoutSeconds:  20,
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg = valid()
	cfg.StoreDriver = StoreDriverMemory
	cfg.DatabaseURL = ""
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.StoreDriver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "STORE_DRIVER")

	cfg = valid()
	cfg.ScanTimeoutSeconds = 60
	assert.ErrorContains(t, cfg.Validate(), "SCAN_TIMEOUT_SECONDS")

	cfg = valid()
	cfg.AlarmTimezone = "Mars/Olympus"
	assert.ErrorContains(t, cfg.Validate(), "ALARM_TIMEZONE")
}
