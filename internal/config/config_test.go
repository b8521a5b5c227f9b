package config_test

import (
	"testing"
	"time"

	"github.com/SanjayB2005/TaskManagement/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 1440, cfg.Sweep.ThresholdMinutes)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "kanban.db")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("SWEEP_THRESHOLD_MINUTES", "60")
	t.Setenv("WORKERS", "3")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "kanban.db", cfg.Database.URL)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	assert.Equal(t, 60, cfg.Sweep.ThresholdMinutes)
	assert.Equal(t, 3, cfg.Sweep.Workers)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PORT", "9090")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("port", "", "")
	flags.String("driver", "", "")
	require.NoError(t, flags.Parse([]string{"--port=7000", "--driver=memory"}))

	cfg, err := config.Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	t.Setenv("DB_DRIVER", "mongodb")
	_, err := config.Load(nil)
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SWEEP_THRESHOLD_MINUTES", "-1")
	_, err = config.Load(nil)
	assert.Error(t, err)
}
