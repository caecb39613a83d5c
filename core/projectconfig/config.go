// Package projectconfig loads optional per-project CLI defaults so
// repeated invocations do not have to restate the same flags.
package projectconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

const DefaultPath = ".govkernel/config.yaml"

type Config struct {
	Gate  GateDefaults  `yaml:"gate"`
	Audit AuditDefaults `yaml:"audit"`
}

type GateDefaults struct {
	Contract   string `yaml:"contract"`
	OutDir     string `yaml:"out_dir"`
	PrivateKey string `yaml:"private_key"`
}

type AuditDefaults struct {
	Index string `yaml:"index"`
}

// Load reads the defaults file. A missing file is only an error when the
// caller passed an explicit non-default path.
func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Config{}, nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	return configuration, nil
}

func (configuration *Config) normalize() {
	configuration.Gate.Contract = strings.TrimSpace(configuration.Gate.Contract)
	configuration.Gate.OutDir = strings.TrimSpace(configuration.Gate.OutDir)
	configuration.Gate.PrivateKey = strings.TrimSpace(configuration.Gate.PrivateKey)
	configuration.Audit.Index = strings.TrimSpace(configuration.Audit.Index)
}
