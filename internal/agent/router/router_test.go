package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
)

func TestContinuityShortCircuitSkipsClassifier(t *testing.T) {
	mock := provider.NewMockProvider(provider.TextStep("should never be called"))
	r := New(mock, nil)

	d, err := r.Route(context.Background(), "how do i implement that?", "we discussed ransomware containment", role.IncidentResponse)
	require.NoError(t, err)

	assert.True(t, d.FollowUp)
	assert.Equal(t, StrategySingleAgent, d.Strategy)
	assert.Equal(t, []role.Role{role.IncidentResponse}, d.Roles)
	assert.Equal(t, 0, mock.CallCount(), "follow-up routing must not invoke the model")
}

func TestContinuityRequiresActiveRole(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(`{"is_security_related": true, "confidence": 0.9, "reasoning": "security"}`),
		provider.TextStep(`{"response_strategy": "single_agent", "relevant_agents": ["incident_response"], "reasoning": "r", "estimated_complexity": "simple"}`),
	)
	r := New(mock, nil)

	// Same follow-up wording, but no prior thread: Stage B must run.
	d, err := r.Route(context.Background(), "how do i implement that?", "", "")
	require.NoError(t, err)
	assert.False(t, d.FollowUp)
	assert.Equal(t, 2, mock.CallCount())
}

func TestOutOfDomainQueryGetsGeneralStrategy(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(`{"is_security_related": false, "confidence": 0.95, "reasoning": "small talk"}`),
	)
	r := New(mock, nil)

	d, err := r.Route(context.Background(), "what's the weather like today?", "", "")
	require.NoError(t, err)

	assert.Equal(t, StrategyGeneralQuery, d.Strategy)
	assert.Empty(t, d.Roles)
	assert.Equal(t, 1, mock.CallCount(), "strategy selection must be skipped for non-domain queries")
}

func TestMultiAgentSelection(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(`{"is_security_related": true, "confidence": 0.9, "reasoning": "breach"}`),
		provider.TextStep(`{"response_strategy": "multi_agent", "relevant_agents": ["compliance", "incident_response"], "reasoning": "breach with legal exposure", "estimated_complexity": "complex"}`),
	)
	r := New(mock, nil)

	d, err := r.Route(context.Background(), "we had a breach of EU customer data, what now?", "", "")
	require.NoError(t, err)

	assert.Equal(t, StrategyMultiAgent, d.Strategy)
	assert.Len(t, d.Roles, 2)
	assert.Equal(t, ComplexityComplex, d.Complexity)
}

func TestInvalidStrategyRetriesThenDefaults(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(`{"is_security_related": true, "confidence": 0.9, "reasoning": "security"}`),
		// multi_agent with a single agent violates the alignment rule, twice.
		provider.TextStep(`{"response_strategy": "multi_agent", "relevant_agents": ["prevention"], "reasoning": "r", "estimated_complexity": "simple"}`),
	)
	r := New(mock, nil)

	d, err := r.Route(context.Background(), "harden my kubernetes cluster against attacks", "", "")
	require.NoError(t, err)

	assert.Equal(t, StrategySingleAgent, d.Strategy)
	assert.Equal(t, []role.Role{role.DefaultRole}, d.Roles)
	assert.Equal(t, ComplexityModerate, d.Complexity)
}

func TestClassifierFailureFallsBackToKeywords(t *testing.T) {
	mock := provider.NewMockProvider(provider.ErrStep(errors.New("upstream down")))
	r := New(mock, nil)

	d, err := r.Route(context.Background(), "is this ransomware note real?", "", "")
	require.NoError(t, err)

	// Keyword fallback recognizes "ransomware", then strategy selection also
	// fails and degrades to the default specialist.
	assert.Equal(t, StrategySingleAgent, d.Strategy)
	assert.Equal(t, []role.Role{role.DefaultRole}, d.Roles)
}

func TestClassifierFailureShortQueryIsNonDomain(t *testing.T) {
	mock := provider.NewMockProvider(provider.ErrStep(errors.New("upstream down")))
	r := New(mock, nil, WithContinuityPolicy(func(string) bool { return false }))

	d, err := r.Route(context.Background(), "hi", "", "")
	require.NoError(t, err)
	assert.Equal(t, StrategyGeneralQuery, d.Strategy)
}

func TestDirectStrategyCarriesNoRoles(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(`{"is_security_related": true, "confidence": 0.8, "reasoning": "definition"}`),
		provider.TextStep(`{"response_strategy": "direct", "relevant_agents": ["prevention"], "reasoning": "simple definition", "estimated_complexity": "simple"}`),
	)
	r := New(mock, nil)

	d, err := r.Route(context.Background(), "what does defense in depth mean in practice?", "", "")
	require.NoError(t, err)

	assert.Equal(t, StrategyDirect, d.Strategy)
	assert.Empty(t, d.Roles, "direct answers keep no specialist attribution")
}

func TestPrimaryAgentUsesSpeakingOrder(t *testing.T) {
	r := New(provider.NewMockProvider(), nil)

	assert.Equal(t, role.ThreatIntel, r.PrimaryAgent([]role.Role{role.Compliance, role.ThreatIntel}))
	assert.Equal(t, role.IncidentResponse, r.PrimaryAgent([]role.Role{role.Compliance, role.IncidentResponse, role.Prevention}))
	assert.Equal(t, role.DefaultRole, r.PrimaryAgent(nil))
}

func TestDefaultContinuity(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"how do i implement that?", true},
		{"tell me more about the second one", true},
		{"ok", true},             // very short, no topic-change signal
		{"and then what?", true}, // explicit continuation
		{"what is gdpr and how does it apply to us?", false},
		{"new question: how should we segment our network?", false},
		{"we just detected a ransomware attack on our file server", false},
		{"could you walk me through setting up a brand new SIEM deployment for our datacenter", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DefaultContinuity(tc.query), "query: %q", tc.query)
	}
}

func TestKeywordDomainCheck(t *testing.T) {
	assert.True(t, keywordDomainCheck("someone hacked our mail server"))
	assert.True(t, keywordDomainCheck("need help with GDPR compliance"))
	assert.False(t, keywordDomainCheck("hi"))
	assert.False(t, keywordDomainCheck("what's for lunch around here?"))
}
