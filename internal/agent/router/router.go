// Package router decides which specialists handle a query, combining a
// lexical continuity check with model-based triage.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
)

// Strategy tags how a turn should be answered.
type Strategy string

const (
	// StrategyDirect answers simple security questions without a full
	// specialist consultation.
	StrategyDirect Strategy = "direct"

	// StrategySingleAgent consults exactly one specialist.
	StrategySingleAgent Strategy = "single_agent"

	// StrategyMultiAgent consults two or more specialists and merges.
	StrategyMultiAgent Strategy = "multi_agent"

	// StrategyGeneralQuery handles out-of-domain queries with the general
	// assistant.
	StrategyGeneralQuery Strategy = "general_query"
)

// Complexity is a coarse estimate used for observability.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Decision is the router's immutable output for one turn.
type Decision struct {
	Strategy   Strategy    `json:"strategy"`
	Roles      []role.Role `json:"roles"`
	Complexity Complexity  `json:"complexity"`

	// Reasoning is for logs only, never for control flow.
	Reasoning string `json:"reasoning"`

	// FollowUp marks a continuity short-circuit from Stage A.
	FollowUp bool `json:"follow_up"`
}

// NeedsConsensus reports whether more than one specialist must be merged.
func (d *Decision) NeedsConsensus() bool { return len(d.Roles) > 1 }

// classifierAttempts bounds each structured model call before falling back
// to heuristics.
const classifierAttempts = 2

// minDomainQueryLen: anything shorter can't be meaningfully classified and
// defaults to non-domain in the keyword fallback.
const minDomainQueryLen = 10

// agentExpertise describes each role's primary responsibility. Routing
// matches intent to expertise, never to tool lists.
var agentExpertise = map[role.Role]string{
	role.IncidentResponse: "Handles active security incidents, breaches, malware infections, and suspicious activities. Focuses on containment, eradication, and recovery.",
	role.Prevention:       "Focuses on proactive defense, secure architecture, vulnerability management, and risk mitigation. Designs and recommends security controls.",
	role.ThreatIntel:      "Analyzes threat actors, their tactics (TTPs), and campaigns. Provides deep, contextualized intelligence on adversary motives and likely future actions.",
	role.Compliance:       "Specializes in regulatory frameworks (GDPR, HIPAA, PCI-DSS), policies, and audits. Provides guidance on governance and compliance obligations.",
}

// Router performs the two-stage routing decision.
type Router struct {
	provider provider.Provider
	logger   *slog.Logger

	// isFollowUp is the Stage A continuity policy. Pluggable so the
	// lexical heuristic can be swapped without touching Stage B.
	isFollowUp ContinuityPolicy
}

// Option configures a Router.
type Option func(*Router)

// WithContinuityPolicy replaces the default lexical follow-up heuristic.
func WithContinuityPolicy(p ContinuityPolicy) Option {
	return func(r *Router) {
		if p != nil {
			r.isFollowUp = p
		}
	}
}

// New creates a router backed by the given provider.
func New(p provider.Provider, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		provider:   p,
		logger:     logger.With("component", "router"),
		isFollowUp: DefaultContinuity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route decides the strategy for a query. contextHint and activeRole come
// from the previous turn (empty on the first turn). Route never fails the
// turn: every classifier failure degrades to a heuristic or fixed default.
func (r *Router) Route(ctx context.Context, query, contextHint string, activeRole role.Role) (*Decision, error) {
	// Stage A: continuity short-circuit. An obvious continuation keeps the
	// previously active specialist engaged without re-classifying.
	if contextHint != "" && activeRole.Valid() && r.isFollowUp(query) {
		r.logger.Debug("continuity short-circuit", "role", activeRole)
		return &Decision{
			Strategy:   StrategySingleAgent,
			Roles:      []role.Role{activeRole},
			Complexity: ComplexitySimple,
			Reasoning:  fmt.Sprintf("follow-up to active %s conversation", activeRole),
			FollowUp:   true,
		}, nil
	}

	// Stage B1: domain relevance.
	domain := r.classifyDomain(ctx, query)
	if !domain.IsSecurityRelated {
		return &Decision{
			Strategy:   StrategyGeneralQuery,
			Roles:      nil,
			Complexity: ComplexitySimple,
			Reasoning:  domain.Reasoning,
		}, nil
	}

	// Stage B2: strategy and role selection.
	return r.selectStrategy(ctx, query), nil
}

// PrimaryAgent designates the lead role among candidates by speaking order.
// An empty candidate set falls back to the default role.
func (r *Router) PrimaryAgent(roles []role.Role) role.Role {
	if len(roles) == 0 {
		r.logger.Warn("no relevant agents identified, defaulting", "role", role.DefaultRole)
		return role.DefaultRole
	}
	for _, o := range role.Specialists {
		for _, candidate := range roles {
			if candidate == o {
				return o
			}
		}
	}
	return roles[0]
}

// domainClassification is the structured output of the Stage B1 model call.
type domainClassification struct {
	IsSecurityRelated bool    `json:"is_security_related"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
}

const domainPrompt = `You are an expert at classifying user queries for a cybersecurity advisory service.

Decide whether the query below is related to cybersecurity, IT security, or information security. Incident handling, malware, vulnerabilities, threat actors, security architecture, and security regulations (GDPR, HIPAA, PCI-DSS, NIS2) all count as security-related. Greetings, small talk, weather, and general knowledge do not.

Query:
%q

Reply with ONLY a JSON object:
{"is_security_related": <bool>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

func (r *Router) classifyDomain(ctx context.Context, query string) domainClassification {
	prompt := fmt.Sprintf(domainPrompt, query)

	for attempt := 0; attempt < classifierAttempts; attempt++ {
		resp, err := r.provider.Chat(ctx, "", []provider.Message{{Role: provider.RoleUser, Content: prompt}}, nil)
		if err != nil {
			r.logger.Warn("domain classification call failed", "attempt", attempt+1, "error", err)
			continue
		}
		var c domainClassification
		if err := unmarshalObject(resp.Content, &c); err != nil {
			r.logger.Warn("domain classification parse failed", "attempt", attempt+1, "error", err)
			continue
		}
		return c
	}

	// Heuristic fallback: keyword presence over a fixed term list.
	fallback := keywordDomainCheck(query)
	r.logger.Warn("domain classification degraded to keyword heuristic", "is_security", fallback)
	return domainClassification{
		IsSecurityRelated: fallback,
		Confidence:        0.5,
		Reasoning:         "keyword heuristic fallback after classifier failure",
	}
}

// strategySelection is the structured output of the Stage B2 model call.
type strategySelection struct {
	ResponseStrategy string   `json:"response_strategy"`
	RelevantAgents   []string `json:"relevant_agents"`
	Reasoning        string   `json:"reasoning"`
	Complexity       string   `json:"estimated_complexity"`
}

const strategyPromptHeader = `You are an expert request router for a team of cybersecurity specialist agents. Match the USER INTENT to the AGENT EXPERTISE below.

Agent expertise:
%s

User query:
%q

Rules:
- "direct": a simple factual security question answerable without specialist depth.
- "single_agent": one specialist's expertise clearly covers the query; relevant_agents has exactly one entry.
- "multi_agent": the query genuinely needs multiple perspectives; relevant_agents has two or more entries.

Reply with ONLY a JSON object:
{"response_strategy": "direct"|"single_agent"|"multi_agent", "relevant_agents": ["<role>", ...], "reasoning": "<brief>", "estimated_complexity": "simple"|"moderate"|"complex"}`

func (r *Router) selectStrategy(ctx context.Context, query string) *Decision {
	var sb strings.Builder
	for _, ro := range role.Specialists {
		fmt.Fprintf(&sb, "- %s: %s\n", ro, agentExpertise[ro])
	}
	prompt := fmt.Sprintf(strategyPromptHeader, sb.String(), query)

	for attempt := 0; attempt < classifierAttempts; attempt++ {
		resp, err := r.provider.Chat(ctx, "", []provider.Message{{Role: provider.RoleUser, Content: prompt}}, nil)
		if err != nil {
			r.logger.Warn("strategy selection call failed", "attempt", attempt+1, "error", err)
			continue
		}
		var s strategySelection
		if err := unmarshalObject(resp.Content, &s); err != nil {
			r.logger.Warn("strategy selection parse failed", "attempt", attempt+1, "error", err)
			continue
		}
		decision, err := s.toDecision()
		if err != nil {
			r.logger.Warn("strategy selection invalid", "attempt", attempt+1, "error", err)
			continue
		}
		return decision
	}

	// Fixed default: one safe specialist rather than a failed turn.
	r.logger.Warn("strategy selection degraded to default", "role", role.DefaultRole)
	return &Decision{
		Strategy:   StrategySingleAgent,
		Roles:      []role.Role{role.DefaultRole},
		Complexity: ComplexityModerate,
		Reasoning:  "default routing after classifier failure",
	}
}

// toDecision validates the model's selection against the strategy/agent
// alignment rules.
func (s *strategySelection) toDecision() (*Decision, error) {
	var roles []role.Role
	for _, name := range s.RelevantAgents {
		ro, err := role.Parse(name)
		if err != nil {
			continue // unknown role names are dropped, not fatal
		}
		if ro == role.Coordinator {
			continue
		}
		roles = append(roles, ro)
	}

	strategy := Strategy(s.ResponseStrategy)
	switch strategy {
	case StrategyDirect:
		roles = nil
	case StrategySingleAgent:
		if len(roles) == 0 {
			return nil, fmt.Errorf("single_agent strategy requires one agent")
		}
		roles = roles[:1]
	case StrategyMultiAgent:
		if len(roles) < 2 {
			return nil, fmt.Errorf("multi_agent strategy requires at least two agents, got %d", len(roles))
		}
	default:
		return nil, fmt.Errorf("unknown response strategy %q", s.ResponseStrategy)
	}

	complexity := Complexity(s.Complexity)
	switch complexity {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
	default:
		complexity = ComplexityModerate
	}

	return &Decision{
		Strategy:   strategy,
		Roles:      roles,
		Complexity: complexity,
		Reasoning:  s.Reasoning,
	}, nil
}

// unmarshalObject extracts the outermost JSON object from s and decodes it.
func unmarshalObject(s string, out interface{}) error {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in reply")
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}
