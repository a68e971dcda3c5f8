package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedSettings is returned for a settings file that is neither YAML nor TOML.
var ErrUnsupportedSettings = errors.New("unsupported settings file format")

// Settings holds the per-platform case-id prefix tables. Each table maps an
// entity kind (issue, mr, pipeline, commit, branch, release) or
// "action_prefix" to its prefix; missing entries keep the built-in value.
type Settings struct {
	CaseTypePrefixes map[string]map[string]string `yaml:"case_type_prefixes" toml:"case_type_prefixes"`
}

// LoadSettings reads a settings file, choosing the decoder by extension.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	case ".toml":
		err = toml.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSettings, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return &s, nil
}

// Prefixes returns the prefix overrides of platform, or nil.
func (s *Settings) Prefixes(platform string) map[string]string {
	if s == nil {
		return nil
	}
	return s.CaseTypePrefixes[platform]
}
