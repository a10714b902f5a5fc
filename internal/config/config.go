// Package config holds all configuration for the advisory service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/holst/aegis/internal/agent/role"
)

// Config holds all configuration for the application.
type Config struct {
	// AnthropicAPIKey authenticates model calls.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// Model is the model identifier used for all agents.
	Model string `yaml:"model"`

	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// AuditLogPath is where turn audit events are appended as JSONL.
	// Empty disables audit logging.
	AuditLogPath string `yaml:"audit_log_path"`

	// QualityGates enables LLM-as-a-judge response evaluation.
	QualityGates bool `yaml:"quality_gates"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	Redis RedisConfig          `yaml:"redis"`
	Tools ToolsConfig          `yaml:"tools"`
	Roles map[string]RoleEntry `yaml:"roles"`
}

// RedisConfig selects the checkpoint backend. An empty Addr keeps thread
// state in process memory.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ToolsConfig carries upstream credentials. Tools without a key are simply
// not registered.
type ToolsConfig struct {
	VirusTotalKey string `yaml:"virustotal_key"`
	OTXKey        string `yaml:"otx_key"`
	NVDKey        string `yaml:"nvd_key"`
	TavilyKey     string `yaml:"tavily_key"`
	KnowledgeURL  string `yaml:"knowledge_url"`
}

// RoleEntry overrides parts of a built-in specialist record. Zero fields
// keep the default.
type RoleEntry struct {
	DisplayName      string        `yaml:"display_name"`
	Persona          string        `yaml:"persona"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	QualityThreshold float64       `yaml:"quality_threshold"`
	Tools            []string      `yaml:"tools"`
}

// Default returns the built-in configuration, before file and environment
// overrides.
func Default() *Config {
	return &Config{
		Model:        "claude-sonnet-4-5-20250929",
		LogLevel:     "info",
		QualityGates: true,
		Redis:        RedisConfig{TTL: 24 * time.Hour},
	}
}

// ApplyEnv overlays environment variables onto the configuration. Variables
// win over file values so deployments can inject secrets without editing
// config files.
func (c *Config) ApplyEnv() {
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.Model, "AEGIS_MODEL")
	setString(&c.LogLevel, "AEGIS_LOG_LEVEL")
	setString(&c.AuditLogPath, "AEGIS_AUDIT_LOG")
	setString(&c.MetricsAddr, "AEGIS_METRICS_ADDR")
	setString(&c.Redis.Addr, "AEGIS_REDIS_ADDR")
	setString(&c.Redis.Password, "AEGIS_REDIS_PASSWORD")
	setString(&c.Tools.VirusTotalKey, "VIRUSTOTAL_API_KEY")
	setString(&c.Tools.OTXKey, "OTX_API_KEY")
	setString(&c.Tools.NVDKey, "NVD_API_KEY")
	setString(&c.Tools.TavilyKey, "TAVILY_API_KEY")
	setString(&c.Tools.KnowledgeURL, "AEGIS_KNOWLEDGE_URL")
	if v, ok := os.LookupEnv("AEGIS_QUALITY_GATES"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.QualityGates = b
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return NewConfigError("AnthropicAPIKey must be set (ANTHROPIC_API_KEY)")
	}
	if c.Model == "" {
		return NewConfigError("Model must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return NewConfigError("LogLevel must be one of debug, info, warn, error")
	}
	for name, entry := range c.Roles {
		if _, err := role.Parse(name); err != nil {
			return NewConfigError("unknown role in roles section: " + name)
		}
		if entry.QualityThreshold < 0 || entry.QualityThreshold > 10 {
			return NewConfigError("quality_threshold for " + name + " must be between 0 and 10")
		}
		if entry.RetryAttempts < 0 {
			return NewConfigError("retry_attempts for " + name + " must not be negative")
		}
	}
	return nil
}

// RoleConfigs merges file overrides into the built-in role records.
func (c *Config) RoleConfigs() map[role.Role]role.Config {
	out := role.DefaultConfigs()
	for name, entry := range c.Roles {
		r, err := role.Parse(name)
		if err != nil {
			continue // Validate already rejected unknown names
		}
		rc := out[r]
		if entry.DisplayName != "" {
			rc.DisplayName = entry.DisplayName
		}
		if entry.Persona != "" {
			rc.Persona = entry.Persona
		}
		if entry.Timeout > 0 {
			rc.Timeout = entry.Timeout
		}
		if entry.RetryAttempts > 0 {
			rc.RetryAttempts = entry.RetryAttempts
		}
		if entry.QualityThreshold > 0 {
			rc.QualityThreshold = entry.QualityThreshold
		}
		if entry.Tools != nil {
			rc.Tools = entry.Tools
		}
		out[r] = rc
	}
	return out
}

// ConfigError indicates an invalid configuration value.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}
