package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadStudy loads and validates a study definition file.
func LoadStudy(path string) (*StudyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study file %s: %w", path, err)
	}
	cfg, err := ParseStudyYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse study file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseStudyYAML parses and validates a YAML study definition.
func ParseStudyYAML(data []byte) (*StudyConfig, error) {
	var cfg StudyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
