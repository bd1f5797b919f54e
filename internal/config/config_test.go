package config

import (
	"testing"
	"time"

	"neurodyn/domain/core"
	"neurodyn/domain/run"
	"neurodyn/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, run.DefaultParams(), cfg.Distance)
	assert.Equal(t, 4, cfg.Cohort.Workers)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_DistanceOverrides(t *testing.T) {
	t.Setenv("EDR_LAMBDA", "0.2")
	t.Setenv("EDR_NSTD", "3")
	t.Setenv("EDR_BINS", "60")
	t.Setenv("EDR_NR_INI", "2")
	t.Setenv("EDR_NR_FIN", "40")
	t.Setenv("EDR_BINARY", "true")
	t.Setenv("EDR_HISTOGRAM", "sc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Distance.Lambda)
	assert.Equal(t, 3.0, cfg.Distance.NSTD)
	assert.Equal(t, 60, cfg.Distance.Bins)
	assert.Equal(t, 2, cfg.Distance.NRini)
	assert.Equal(t, 40, cfg.Distance.NRfin)
	assert.True(t, cfg.Distance.Binary)
	assert.Equal(t, run.HistogramSC, cfg.Distance.Histogram)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("EDR_NSTD", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	t.Setenv("EDR_NSTD", "")
	t.Setenv("EDR_WORKERS", "0")
	_, err = Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestEnvHelpers_IgnoreMalformed(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 7, getEnvIntOrDefault("X_INT", 7))
	assert.True(t, getEnvBoolOrDefault("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvDurationOrDefault("X_DUR", time.Second))
}
