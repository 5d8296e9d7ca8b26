package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional project configuration, read from
// .bindweld/config.yaml in the working directory. Command-line flags
// override anything set here.
type fileConfig struct {
	IncludeDirs []string `yaml:"include_dirs"`
	OutDir      string   `yaml:"out_dir"`
	CacheDir    string   `yaml:"cache_dir"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

const configPath = ".bindweld/config.yaml"

// loadFileConfig reads the project config if one exists. A missing
// file is not an error; a malformed one is.
func loadFileConfig() (*fileConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	for i, d := range cfg.IncludeDirs {
		cfg.IncludeDirs[i] = filepath.Clean(d)
	}
	return &cfg, nil
}
