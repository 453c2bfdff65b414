package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults point at the public Flutter release infrastructure. Every value
// can be overridden through a config file.
const (
	DefaultReleasesURL = "https://storage.googleapis.com/flutter_infra_release/releases/releases_linux.json"
	DefaultRepoURL     = "https://github.com/flutter/flutter.git"
	DefaultEnginePath  = "bin/internal/engine.version"
	DefaultArtifactURL = "https://storage.googleapis.com/flutter_infra_release/flutter/%s/android-arm64-release/linux-x64.zip"
	DefaultBinaryName  = "gen_snapshot"
	DefaultLedgerPath  = "snapshot_hashes.csv"

	ConfigFilename = "snaphash.yaml"
)

type Config struct {
	ReleasesURL string `yaml:"releases_url"`
	RepoURL     string `yaml:"repo_url"`
	CloneDir    string `yaml:"clone_dir"`
	EnginePath  string `yaml:"engine_path"`
	ArtifactURL string `yaml:"artifact_url"`
	BinaryName  string `yaml:"binary_name"`
	LedgerPath  string `yaml:"ledger_path"`
}

func DefaultConfig() *Config {
	return &Config{
		ReleasesURL: DefaultReleasesURL,
		RepoURL:     DefaultRepoURL,
		CloneDir:    filepath.Join(os.TempDir(), "snaphash", "flutter"),
		EnginePath:  DefaultEnginePath,
		ArtifactURL: DefaultArtifactURL,
		BinaryName:  DefaultBinaryName,
		LedgerPath:  DefaultLedgerPath,
	}
}

// LoadConfig reads the config at path, or ConfigFilename in the working
// directory when path is empty. A missing file means defaults; keys absent
// from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigFilename
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	if path == "" {
		path = ConfigFilename
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
