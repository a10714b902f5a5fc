// Package role defines the fixed set of specialist roles, their personas,
// model-call configuration, and tool permissions. Roles are constructed once
// at startup and never mutated.
package role

import (
	"fmt"
	"time"
)

// Role identifies a specialist persona.
type Role string

const (
	IncidentResponse Role = "incident_response"
	Prevention       Role = "prevention"
	ThreatIntel      Role = "threat_intel"
	Compliance       Role = "compliance"
	Coordinator      Role = "coordinator"
)

// Specialists lists the consultable roles in speaking order. The merge step
// emits sections in this order regardless of which specialist finished first.
var Specialists = []Role{IncidentResponse, ThreatIntel, Prevention, Compliance}

// All lists every role including the coordinator.
var All = []Role{IncidentResponse, Prevention, ThreatIntel, Compliance, Coordinator}

// DefaultRole is the conservative fallback when routing cannot decide.
const DefaultRole = IncidentResponse

// Config is the immutable per-role configuration record.
type Config struct {
	Role             Role          `yaml:"role"`
	DisplayName      string        `yaml:"display_name"`
	Persona          string        `yaml:"persona"`
	Expertise        string        `yaml:"expertise"`
	Model            string        `yaml:"model"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	QualityThreshold float64       `yaml:"quality_threshold"`
	Tools            []string      `yaml:"tools"`
}

// defaults holds the built-in role records. A YAML roles file may override
// model parameters and tool permissions but not add new roles.
var defaults = map[Role]Config{
	IncidentResponse: {
		Role:             IncidentResponse,
		DisplayName:      "Sarah Chen (Incident Response)",
		Persona:          incidentResponsePersona,
		Expertise:        "Handles active security incidents, breaches, malware infections, and suspicious activities. Focuses on containment, eradication, and recovery.",
		Temperature:      0.1,
		MaxTokens:        3000,
		Timeout:          30 * time.Second,
		RetryAttempts:    3,
		QualityThreshold: 6.0,
		Tools:            []string{"ioc_analysis", "web_search", "knowledge_search", "exposure_checker"},
	},
	Prevention: {
		Role:             Prevention,
		DisplayName:      "Alex Rodriguez (Prevention)",
		Persona:          preventionPersona,
		Expertise:        "Focuses on proactive defense, secure architecture, vulnerability management, and risk mitigation. Designs and recommends security controls.",
		Temperature:      0.2,
		MaxTokens:        3000,
		Timeout:          30 * time.Second,
		RetryAttempts:    3,
		QualityThreshold: 5.5,
		Tools:            []string{"vulnerability_search", "web_search", "knowledge_search", "threat_feeds"},
	},
	ThreatIntel: {
		Role:             ThreatIntel,
		DisplayName:      "Dr. Kim Park (Threat Intel)",
		Persona:          threatIntelPersona,
		Expertise:        "Analyzes threat actors, their tactics (TTPs), and campaigns. Provides deep, contextualized intelligence on adversary motives and likely future actions.",
		Temperature:      0.3,
		MaxTokens:        3500,
		Timeout:          45 * time.Second,
		RetryAttempts:    3,
		QualityThreshold: 6.0,
		Tools:            []string{"ioc_analysis", "threat_feeds", "web_search", "knowledge_search"},
	},
	Compliance: {
		Role:             Compliance,
		DisplayName:      "Maria Santos (Compliance)",
		Persona:          compliancePersona,
		Expertise:        "Specializes in regulatory frameworks (GDPR, HIPAA, PCI-DSS), policies, and audits. Provides guidance on governance and compliance obligations.",
		Temperature:      0.0,
		MaxTokens:        2500,
		Timeout:          30 * time.Second,
		RetryAttempts:    3,
		QualityThreshold: 6.5,
		Tools:            []string{"compliance_guidance", "web_search", "knowledge_search"},
	},
	Coordinator: {
		Role:             Coordinator,
		DisplayName:      "Team Coordinator",
		Persona:          coordinatorPersona,
		Expertise:        "Synthesizes specialist analyses into a single coordinated report with prioritized recommendations.",
		Temperature:      0.3,
		MaxTokens:        1000,
		Timeout:          20 * time.Second,
		RetryAttempts:    2,
		QualityThreshold: 5.5,
		Tools:            []string{"knowledge_search"},
	},
}

// Parse converts a string into a known Role.
func Parse(s string) (Role, error) {
	r := Role(s)
	if _, ok := defaults[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := defaults[r]
	return ok
}

// DefaultConfig returns the built-in configuration for a role. Unknown roles
// receive the default role's record so a misconfigured caller still gets a
// usable specialist.
func DefaultConfig(r Role) Config {
	if cfg, ok := defaults[r]; ok {
		return cfg
	}
	return defaults[DefaultRole]
}

// DefaultConfigs returns a copy of every built-in role record.
func DefaultConfigs() map[Role]Config {
	out := make(map[Role]Config, len(defaults))
	for r, cfg := range defaults {
		out[r] = cfg
	}
	return out
}

// QualityThreshold returns the quality-gate threshold for a role.
func QualityThreshold(r Role) float64 {
	if cfg, ok := defaults[r]; ok {
		return cfg.QualityThreshold
	}
	return 7.0
}

// Permitted reports whether toolName is in the role's permitted tool set.
func (c Config) Permitted(toolName string) bool {
	for _, t := range c.Tools {
		if t == toolName {
			return true
		}
	}
	return false
}
