package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SaveTo writes the resolved config to path, creating its directory. The
// import tool records the settings each bundle was baked with this way.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "encoding config")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
