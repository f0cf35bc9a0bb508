package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatretro/issueflow/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, types.DefaultClusterThreshold, s.ClusterThreshold)
	assert.Equal(t, TransportCLI, s.Agent.Transport)
	assert.Equal(t, "claude", s.Agent.Binary)
	assert.Equal(t, 5*time.Minute, s.Agent.Timeout)
	assert.Equal(t, 10, s.Agent.MaxTurns)
	assert.Empty(t, s.RepoURL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `cluster-threshold: 0.85
repo-url: https://github.com/acme/widgets
agent:
  transport: api
  model: claude-sonnet-4-5
  timeout: 90s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.85, s.ClusterThreshold)
	assert.Equal(t, "https://github.com/acme/widgets", s.RepoURL)
	assert.Equal(t, TransportAPI, s.Agent.Transport)
	assert.Equal(t, "claude-sonnet-4-5", s.Agent.Model)
	assert.Equal(t, 90*time.Second, s.Agent.Timeout)
	assert.Equal(t, 10, s.Agent.MaxTurns)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cluster-threshold: 0.5\n"), 0o644))
	t.Setenv("ISSUEFLOW_CLUSTER_THRESHOLD", "0.9")
	t.Setenv("ISSUEFLOW_AGENT_TRANSPORT", "api")

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.9, s.ClusterThreshold)
	assert.Equal(t, TransportAPI, s.Agent.Transport)
}

func TestLoadRejectsBadTransport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("agent:\n  transport: carrier-pigeon\n"), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "agent.transport")
}

func TestLoadRejectsThresholdOutOfRange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cluster-threshold: 1.5\n"), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "cluster-threshold")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadLocalConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("repo-url: https://github.com/acme/widgets\nreporter: ci-bot\n"), 0o644))

	cfg := LoadLocalConfig(dir)
	assert.Equal(t, "https://github.com/acme/widgets", cfg.RepoURL)
	assert.Equal(t, "ci-bot", cfg.Reporter)
}

func TestLoadLocalConfigMissingFile(t *testing.T) {
	cfg := LoadLocalConfig(t.TempDir())
	assert.Empty(t, cfg.RepoURL)
}

func TestLoadLocalConfigWithEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("reporter: file-value\n"), 0o644))
	t.Setenv("ISSUEFLOW_REPORTER", "env-value")

	cfg := LoadLocalConfigWithEnv(dir)
	assert.Equal(t, "env-value", cfg.Reporter)
}
