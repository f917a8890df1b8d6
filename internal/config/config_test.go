package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SLA_HIGH_WINDOW", "")
	t.Setenv("APP_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 4*time.Hour, cfg.SLA.HighWindow)
	assert.Equal(t, 24*time.Hour, cfg.SLA.MediumWindow)
	assert.Equal(t, 72*time.Hour, cfg.SLA.LowWindow)
	assert.Equal(t, time.Hour, cfg.SLA.DueSoonThreshold)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SLA_HIGH_WINDOW", "2h")
	t.Setenv("SLA_DUE_SOON_THRESHOLD", "30m")
	t.Setenv("SLA_MONITOR_INTERVAL", "0s")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 2*time.Hour, cfg.SLA.Policy().High)
	assert.Equal(t, 30*time.Minute, cfg.SLA.Policy().DueSoon)
	assert.Zero(t, cfg.Worker.SLAMonitorInterval)
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive window", func(t *testing.T) {
		t.Setenv("SLA_LOW_WINDOW", "-1h")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "one")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestGetEnvAsDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_WINDOW", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_WINDOW", time.Minute))
}
