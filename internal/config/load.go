package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DevRootEnv names the directory the import tool works from during development.
const DevRootEnv = "MALWERKS_DEV_ROOT"

// FileName is the config file looked up next to the scene and in the
// working and user config directories.
const FileName = "import.yaml"

// Load builds the configuration: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile(filepath.Dir(*flagInput))
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "loading config from %s", path)
		}
	}

	applyFlags(cfg)
	cfg.Resolve()
	return cfg, nil
}

// findConfigFile returns the first existing config: next to the scene, in
// the working directory, then in the user config directory.
func findConfigFile(sceneDir string) string {
	candidates := []string{filepath.Join(sceneDir, FileName), FileName}
	if dir := ConfigDir(); dir != "" {
		candidates = append(candidates, filepath.Join(dir, FileName))
	}
	for _, path := range candidates {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user config directory, or "" when the platform
// has none.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "malwerks")
}

// WorkDir returns the development root when DevRootEnv is set, otherwise "".
func WorkDir() string {
	return os.Getenv(DevRootEnv)
}

// loadFromFile merges a YAML file over cfg. Unknown keys are errors so a
// misspelled setting does not silently fall back to its default.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}
