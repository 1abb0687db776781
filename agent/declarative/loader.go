package declarative

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TeamLoader loads TeamDefinition from files or raw bytes.
type TeamLoader interface {
	// LoadFile reads a file and parses it into a TeamDefinition.
	// Format is auto-detected from the file extension (.yaml, .yml, .json).
	LoadFile(path string) (*TeamDefinition, error)

	// LoadBytes parses raw bytes into a TeamDefinition.
	// format must be "yaml" or "json".
	LoadBytes(data []byte, format string) (*TeamDefinition, error)
}

// YAMLLoader implements TeamLoader for YAML and JSON formats.
// ${VAR} references are expanded from the environment before parsing.
type YAMLLoader struct {
	expandEnv bool
}

// NewYAMLLoader creates a new YAMLLoader with environment expansion enabled.
func NewYAMLLoader() *YAMLLoader {
	return &YAMLLoader{expandEnv: true}
}

// WithoutEnvExpansion disables ${VAR} expansion.
func (l *YAMLLoader) WithoutEnvExpansion() *YAMLLoader {
	l.expandEnv = false
	return l
}

// LoadFile reads a file and parses it based on extension.
func (l *YAMLLoader) LoadFile(path string) (*TeamDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read team definition file: %w", err)
	}

	format := detectFormat(path)
	if format == "" {
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}

	return l.LoadBytes(data, format)
}

// LoadBytes parses raw bytes in the given format ("yaml" or "json").
func (l *YAMLLoader) LoadBytes(data []byte, format string) (*TeamDefinition, error) {
	if l.expandEnv {
		data = []byte(os.ExpandEnv(string(data)))
	}

	var def TeamDefinition
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q, use \"yaml\" or \"json\"", format)
	}

	return &def, nil
}

// detectFormat returns "yaml" or "json" based on file extension, or "" if unknown.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
