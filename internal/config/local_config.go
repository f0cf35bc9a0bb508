package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig is the subset of config.yaml read directly from disk rather
// than through viper. Useful before viper is initialized, or when
// inspecting a runtime directory other than the one viper was pointed at
// (the watch daemon does this when told to monitor a sibling checkout).
//
// Returns zero values rather than errors: a missing or unparsable file
// behaves like an empty one.
type LocalConfig struct {
	RepoURL    string `yaml:"repo-url"`
	PromptsDir string `yaml:"prompts-dir"`
	Reporter   string `yaml:"reporter"`
}

// LoadLocalConfig reads config.yaml directly from the runtime directory.
func LoadLocalConfig(runtimeDir string) *LocalConfig {
	data, err := os.ReadFile(filepath.Join(runtimeDir, configFileName)) // #nosec G304 - controlled path from runtime dir
	if err != nil {
		return &LocalConfig{}
	}

	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}
	return &cfg
}

// LoadLocalConfigWithEnv reads config.yaml and applies environment
// overrides. Environment variables take precedence over file values.
func LoadLocalConfigWithEnv(runtimeDir string) *LocalConfig {
	cfg := LoadLocalConfig(runtimeDir)

	if repo := os.Getenv("ISSUEFLOW_REPO_URL"); repo != "" {
		cfg.RepoURL = repo
	}
	if reporter := os.Getenv("ISSUEFLOW_REPORTER"); reporter != "" {
		cfg.Reporter = reporter
	}
	return cfg
}
