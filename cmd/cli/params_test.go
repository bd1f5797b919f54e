package main

import (
	"testing"

	"neurodyn/domain/run"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamFlags_OverlayOnlyChanged(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	pf := addParamFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--nstd", "3", "--histogram", "sc", "--binary"}))

	base := run.DefaultParams()
	base.NRini = 2
	base.NRfin = 12

	p, err := pf.resolveOver(cmd, base)
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.NSTD)
	assert.Equal(t, run.HistogramSC, p.Histogram)
	assert.True(t, p.Binary)
	assert.Equal(t, 2, p.NRini, "unchanged flags keep the base value")
	assert.Equal(t, 12, p.NRfin)
}

func TestParamFlags_Validates(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	pf := addParamFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--bins", "0"}))

	_, err := pf.resolveOver(cmd, run.DefaultParams())
	assert.Error(t, err)
}

func TestParamFlags_EnvironmentBase(t *testing.T) {
	t.Setenv("EDR_NSTD", "2.5")
	cmd := &cobra.Command{Use: "x"}
	pf := addParamFlags(cmd)
	require.NoError(t, cmd.ParseFlags(nil))

	p, err := pf.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, 2.5, p.NSTD)
}
