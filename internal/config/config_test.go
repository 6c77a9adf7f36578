package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FESOM/metis-wizard/internal/model"
)

// TestLoad_Missing verifies a missing config file silently yields the
// built-in defaults.
func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "fesom_ini", cfg.Binary)
	assert.Equal(t, "namelist.config", cfg.Namelist)
	assert.Empty(t, cfg.Image)
	assert.Equal(t, []int{72, 144, 288, 432, 864}, cfg.InteractiveChoices)
}

// TestLoad_Overrides verifies file values layer over defaults while
// unset fields keep their defaults.
func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "binary: /opt/fesom/bin/fesom_ini\ninteractive_choices: [4, 8, 16]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/fesom/bin/fesom_ini", cfg.Binary)
	assert.Equal(t, []int{4, 8, 16}, cfg.InteractiveChoices)
	assert.Equal(t, "namelist.config", cfg.Namelist, "unset field keeps default")
}

// TestLoad_UnknownField verifies typoed keys are rejected instead of
// silently ignored.
func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binray: x\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
}

// TestLoad_InvalidChoices verifies out-of-range interactive choices fail
// validation.
func TestLoad_InvalidChoices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interactive_choices: [0, 8]\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

// TestPath_EnvOverride verifies METIS_WIZARD_CONFIG wins over the
// per-user config directory.
func TestPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.yaml")

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", path)
}
