// Package config loads pipeline settings from config.yaml in the runtime
// directory, with ISSUEFLOW_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chatretro/issueflow/internal/types"
)

// Config keys. Nested keys use dots in the file and underscores in the
// environment (ISSUEFLOW_AGENT_TRANSPORT overrides agent.transport).
const (
	KeyClusterThreshold = "cluster-threshold"
	KeyRepoURL          = "repo-url"
	KeyPromptsDir       = "prompts-dir"
	KeyAgentTransport   = "agent.transport"
	KeyAgentModel       = "agent.model"
	KeyAgentBinary      = "agent.binary"
	KeyAgentTimeout     = "agent.timeout"
	KeyAgentMaxTurns    = "agent.max-turns"
)

// Agent transports.
const (
	TransportCLI = "cli"
	TransportAPI = "api"
)

const configFileName = "config.yaml"

// Settings is the loaded pipeline configuration.
type Settings struct {
	// ClusterThreshold is the minimum similarity for cluster membership.
	ClusterThreshold float64

	// RepoURL, when set, enables GitHub issue links in reporter output.
	RepoURL string

	// PromptsDir overrides the embedded agent definitions.
	PromptsDir string

	Agent AgentSettings
}

// AgentSettings controls how the collaborator is invoked.
type AgentSettings struct {
	// Transport selects the invocation path: "cli" or "api".
	Transport string

	// Model is the API model name. Ignored by the CLI transport.
	Model string

	// Binary is the CLI executable. Ignored by the API transport.
	Binary string

	// Timeout bounds one agent invocation.
	Timeout time.Duration

	// MaxTurns caps CLI agent iterations per invocation.
	MaxTurns int
}

// Load reads config.yaml from runtimeDir and applies environment
// overrides. A missing file yields pure defaults; a malformed file is an
// error.
func Load(runtimeDir string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(filepath.Join(runtimeDir, configFileName))

	v.SetEnvPrefix("ISSUEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyClusterThreshold, types.DefaultClusterThreshold)
	v.SetDefault(KeyRepoURL, "")
	v.SetDefault(KeyPromptsDir, "")
	v.SetDefault(KeyAgentTransport, TransportCLI)
	v.SetDefault(KeyAgentModel, "")
	v.SetDefault(KeyAgentBinary, "claude")
	v.SetDefault(KeyAgentTimeout, "5m")
	v.SetDefault(KeyAgentMaxTurns, 10)

	// Missing file means pure defaults; anything else is a real problem.
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	s := &Settings{
		ClusterThreshold: v.GetFloat64(KeyClusterThreshold),
		RepoURL:          v.GetString(KeyRepoURL),
		PromptsDir:       v.GetString(KeyPromptsDir),
		Agent: AgentSettings{
			Transport: v.GetString(KeyAgentTransport),
			Model:     v.GetString(KeyAgentModel),
			Binary:    v.GetString(KeyAgentBinary),
			Timeout:   v.GetDuration(KeyAgentTimeout),
			MaxTurns:  v.GetInt(KeyAgentMaxTurns),
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects out-of-range settings before the pipeline runs with
// them.
func (s *Settings) Validate() error {
	if s.ClusterThreshold < 0 || s.ClusterThreshold > 1 {
		return fmt.Errorf("cluster-threshold %.2f out of range [0, 1]", s.ClusterThreshold)
	}
	switch s.Agent.Transport {
	case TransportCLI, TransportAPI:
	default:
		return fmt.Errorf("agent.transport %q is invalid (valid values: cli, api)", s.Agent.Transport)
	}
	if s.Agent.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be positive")
	}
	if s.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max-turns must be positive")
	}
	return nil
}
