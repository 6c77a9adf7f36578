// Package config loads the optional metis-wizard user configuration.
//
// The config file customizes defaults that would otherwise be compiled in:
// the partitioner binary, the namelist template, the Docker image used by
// --image runs, and the curated partition counts offered in interactive
// mode. Command-line flags always override config values.
//
// Location: $METIS_WIZARD_CONFIG if set, otherwise
// <user config dir>/metis-wizard/config.yaml. A missing file is not an
// error — defaults apply.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/FESOM/metis-wizard/internal/model"
	"github.com/FESOM/metis-wizard/internal/partitioner"
)

// EnvConfigPath is the environment variable that overrides the config
// file location.
const EnvConfigPath = "METIS_WIZARD_CONFIG"

// Config holds the user-tunable defaults for the wizard.
type Config struct {
	// Binary is the partitioner executable, a bare name resolved on PATH
	// or a path. Default: "fesom_ini".
	Binary string `yaml:"binary"`

	// Namelist is the namelist.config template patched before each run.
	// Default: "namelist.config" in the working directory; skipped when
	// the file does not exist.
	Namelist string `yaml:"namelist"`

	// Image, when set, makes Docker the default execution mode: partition
	// runs use this image unless --local is given or --image overrides it.
	// Empty means local execution.
	Image string `yaml:"image"`

	// InteractiveChoices are the partition counts offered in interactive
	// mode. FESOM scales to a few hundred cores, so the defaults are the
	// core counts FESOM setups commonly run with.
	InteractiveChoices []int `yaml:"interactive_choices"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Binary:             partitioner.DefaultBinary,
		Namelist:           partitioner.NamelistFileName,
		InteractiveChoices: []int{72, 144, 288, 432, 864},
	}
}

// Path returns the config file location: the EnvConfigPath override if
// set, otherwise the per-user config directory.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "metis-wizard", "config.yaml"), nil
}

// Load reads the config file at path, layering it over the defaults.
// A missing file yields the defaults without error; a malformed or
// invalid file is a CLIError so the CLI reports it cleanly.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to read config %q", path), err)
	}

	// KnownFields rejects typos like "binray:" instead of silently
	// ignoring them.
	var fileCfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		return cfg, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to parse config %q", path), err)
	}

	if fileCfg.Binary != "" {
		cfg.Binary = fileCfg.Binary
	}
	if fileCfg.Namelist != "" {
		cfg.Namelist = fileCfg.Namelist
	}
	if fileCfg.Image != "" {
		cfg.Image = fileCfg.Image
	}
	if len(fileCfg.InteractiveChoices) > 0 {
		cfg.InteractiveChoices = fileCfg.InteractiveChoices
	}

	if err := cfg.validate(); err != nil {
		return Default(), model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid config %q", path), err)
	}
	return cfg, nil
}

// LoadDefault loads the config from the standard location.
func LoadDefault() (Config, error) {
	path, err := Path()
	if err != nil {
		// No resolvable config directory (e.g. HOME unset in a container):
		// run with defaults rather than failing a partitioning session
		// over an optional file.
		return Default(), nil
	}
	return Load(path)
}

func (c Config) validate() error {
	for _, n := range c.InteractiveChoices {
		if n < 1 || n > model.MaxPartitionCount {
			return fmt.Errorf("interactive_choices entry %d out of range [1, %d]", n, model.MaxPartitionCount)
		}
	}
	return nil
}
