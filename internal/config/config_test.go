package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holst/aegis/internal/agent/role"
)

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
model: test-model
log_level: debug
quality_gates: false
tools:
  nvd_key: from-file
roles:
  incident_response:
    quality_threshold: 7.5
    tools: ["ioc_analysis"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("NVD_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-model", cfg.Model)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.QualityGates)
	assert.Equal(t, "from-env", cfg.Tools.NVDKey, "environment wins over file")

	roles := cfg.RoleConfigs()
	ir := roles[role.IncidentResponse]
	assert.Equal(t, 7.5, ir.QualityThreshold)
	assert.Equal(t, []string{"ioc_analysis"}, ir.Tools)

	// Untouched roles keep their built-in records.
	assert.Equal(t, role.DefaultConfig(role.Compliance), roles[role.Compliance])
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := Load("")
	require.Error(t, err)

	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "AnthropicAPIKey")
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	cfg := Default()
	cfg.AnthropicAPIKey = "sk-test"
	cfg.Roles = map[string]RoleEntry{"astrologer": {}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "astrologer")
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := Default()
	cfg.AnthropicAPIKey = "sk-test"
	cfg.Roles = map[string]RoleEntry{"compliance": {QualityThreshold: 11}}

	assert.Error(t, cfg.Validate())
}

func TestLoadOptionalMissingFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestDefaultRedisTTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, Default().Redis.TTL)
}
