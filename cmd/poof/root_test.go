package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poof-sh/poof/config"
)

func TestInferCommand(t *testing.T) {
	assert.Equal(t, "exec", inferCommand([]string{"bash"}))
	assert.Equal(t, "exec", inferCommand([]string{"/bin/zsh", "-l"}))
	assert.Equal(t, "exec", inferCommand([]string{"sh", "-c", "true"}))
	assert.Equal(t, "enter", inferCommand(nil))
	assert.Equal(t, "enter", inferCommand([]string{"vim"}))
}

func TestBuildConfigInvalidOptions(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	reset := func() { flagMemory, flagPids, flagTimeout = "", "", "" }
	defer reset()

	reset()
	flagMemory = "invalid"
	_, err := buildConfig(config.Ephemeral, []string{"true"})
	assert.Error(t, err)

	reset()
	flagPids = "abc"
	_, err = buildConfig(config.Ephemeral, []string{"true"})
	assert.Error(t, err)

	reset()
	flagTimeout = "abc"
	_, err = buildConfig(config.Ephemeral, []string{"true"})
	assert.Error(t, err)
}

func TestBuildConfigLimits(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	flagMemory, flagPids, flagTimeout = "64M", "32", "5"
	defer func() { flagMemory, flagPids, flagTimeout = "", "", "" }()

	cfg, err := buildConfig(config.Ephemeral, []string{"sleep", "60"})
	require.NoError(t, err)
	assert.Equal(t, uint64(64<<20), cfg.MemoryLimit)
	assert.Equal(t, uint64(32), cfg.PidsLimit)
	assert.Equal(t, int64(5), int64(cfg.Timeout.Seconds()))
	assert.True(t, cfg.HasLimits())
	assert.Equal(t, []string{"sleep", "60"}, cfg.Command)
}
