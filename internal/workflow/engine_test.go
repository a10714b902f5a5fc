package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
	"github.com/holst/aegis/internal/agent/specialist"
	"github.com/holst/aegis/internal/agent/tools"
	"github.com/holst/aegis/internal/checkpoint"
)

const (
	domainYes = `{"is_security_related": true, "confidence": 0.95, "reasoning": "security topic"}`
	domainNo  = `{"is_security_related": false, "confidence": 0.95, "reasoning": "small talk"}`

	strategySingleIR = `{"response_strategy": "single_agent", "relevant_agents": ["incident_response"], "reasoning": "incident", "estimated_complexity": "moderate"}`
	strategyMulti    = `{"response_strategy": "multi_agent", "relevant_agents": ["incident_response", "compliance"], "reasoning": "breach with legal exposure", "estimated_complexity": "complex"}`
	strategyDirect   = `{"response_strategy": "direct", "relevant_agents": [], "reasoning": "simple question", "estimated_complexity": "simple"}`

	specialistReply = `{"summary": "Isolate the affected host and preserve forensic evidence.", "recommendations": ["Disconnect the host from the network", "Capture a memory image"], "confidence_score": 0.9, "handoff_suggestion": null}`
)

func newTestEngine(t *testing.T, mock *provider.MockProvider, quality bool) *Engine {
	t.Helper()
	e, err := New(Config{
		Provider:     mock,
		Registry:     tools.NewEmptyRegistry(nil),
		QualityGates: quality,
	})
	require.NoError(t, err)
	return e
}

func TestGeneralQuerySkipsSpecialistsAndQuality(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainNo),
		provider.TextStep("The weather question is outside my security remit, but happy to help!"),
	)
	e := newTestEngine(t, mock, true)

	state, err := e.Run(context.Background(), "what's the weather like today?", "t1")
	require.NoError(t, err)

	assert.Contains(t, state.FinalAnswer, "happy to help")
	assert.Empty(t, state.TeamResponses)
	assert.True(t, state.QualityPassed)
	assert.Equal(t, 10.0, state.QualityScore)
}

func TestSingleSpecialistTurn(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategySingleIR),
		provider.TextStep(specialistReply),
	)
	e := newTestEngine(t, mock, false)

	state, err := e.Run(context.Background(), "we found a compromised host in production", "t1")
	require.NoError(t, err)

	require.Len(t, state.TeamResponses, 1)
	assert.Equal(t, role.IncidentResponse, state.TeamResponses[0].Role)
	assert.Contains(t, state.FinalAnswer, "Isolate the affected host")
	assert.Contains(t, state.FinalAnswer, "## Recommendations")
	assert.Contains(t, state.FinalAnswer, "1. Disconnect the host from the network")
	assert.Equal(t, 0, state.ErrorCount)

	// With gates disabled the response passes with the sentinel score.
	assert.True(t, state.QualityPassed)
	assert.Equal(t, 1.0, state.QualityScore)
}

func TestTurnPersistsCheckpoint(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategySingleIR),
		provider.TextStep(specialistReply),
	)
	store := checkpoint.NewMemoryStore()
	e, err := New(Config{Provider: mock, Registry: tools.NewEmptyRegistry(nil), Store: store})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "we found a compromised host in production", "t1")
	require.NoError(t, err)

	snap, err := store.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, role.IncidentResponse, snap.ActiveRole)
	assert.Equal(t, 1, snap.TurnCount)
	assert.Len(t, snap.Messages, 2)
	assert.NotEmpty(t, snap.ContextHint)
}

func TestFollowUpSkipsClassification(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategySingleIR),
		provider.TextStep(specialistReply),
	)
	e := newTestEngine(t, mock, false)
	ctx := context.Background()

	_, err := e.Run(ctx, "we found a compromised host in production", "t1")
	require.NoError(t, err)
	require.Equal(t, 3, mock.CallCount())

	// The follow-up reuses the active specialist: exactly one more model
	// call, no re-classification.
	state, err := e.Run(ctx, "how do i implement that?", "t1")
	require.NoError(t, err)

	assert.True(t, state.Decision.FollowUp)
	assert.Equal(t, []role.Role{role.IncidentResponse}, state.Decision.Roles)
	assert.Equal(t, 4, mock.CallCount())
}

func TestMultiAgentMergePreservesSpeakingOrder(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyMulti),
		provider.TextStep(specialistReply), // served to both specialists
	)
	e := newTestEngine(t, mock, false)

	state, err := e.Run(context.Background(), "we had a breach of EU customer data, what are our obligations?", "t1")
	require.NoError(t, err)

	require.Len(t, state.TeamResponses, 2)
	assert.Equal(t, role.IncidentResponse, state.TeamResponses[0].Role)
	assert.Equal(t, role.Compliance, state.TeamResponses[1].Role)

	assert.Contains(t, state.FinalAnswer, "## Team Analysis Summary")
	irIdx := strings.Index(state.FinalAnswer, "(incident_response)")
	coIdx := strings.Index(state.FinalAnswer, "(compliance)")
	require.NotEqual(t, -1, irIdx)
	require.NotEqual(t, -1, coIdx)
	assert.Less(t, irIdx, coIdx, "incident response speaks before compliance")

	// Identical recommendations from both specialists appear once.
	assert.Equal(t, 1, strings.Count(state.FinalAnswer, "Disconnect the host from the network"))
}

func TestAllSpecialistsFailingYieldsNoAnalysisMessage(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyMulti),
		provider.ErrStep(provider.NewError("mock", provider.ErrCategoryInvalidRequest, errors.New("bad request"))),
	)
	e := newTestEngine(t, mock, false)

	answer := e.TeamResponse(context.Background(), "we had a breach, what now?", "t1")
	assert.Equal(t, noAnalysisMessage, answer)
}

func TestPartialSpecialistFailureIsCounted(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyMulti),
		provider.ErrStep(provider.NewError("mock", provider.ErrCategoryInvalidRequest, errors.New("bad request"))),
	)
	e := newTestEngine(t, mock, false)

	state, err := e.Run(context.Background(), "we had a breach, what now?", "t1")
	require.NoError(t, err, "specialist failures degrade, they do not abort the turn")
	assert.Empty(t, state.TeamResponses)
	assert.Equal(t, 2, state.ErrorCount)
	assert.NotEmpty(t, state.LastError)
}

func TestConsultRecordsMissingAgentBeforeDispatch(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyMulti),
		provider.TextStep(specialistReply),
	)
	e := newTestEngine(t, mock, false)
	delete(e.agents, role.Compliance)

	state, err := e.Run(context.Background(), "we had a breach of EU customer data, what are our obligations?", "t1")
	require.NoError(t, err)

	require.Len(t, state.TeamResponses, 1)
	assert.Equal(t, role.IncidentResponse, state.TeamResponses[0].Role)
	assert.Equal(t, 1, state.ErrorCount)
	assert.Contains(t, state.LastError, "no agent for role compliance")
}

func TestQualityEnhancementRewritesFailingAnswer(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyDirect),
		provider.TextStep("Just be careful online."),
		provider.TextStep(`{"overall": 3.0, "feedback": "Too vague, no concrete actions."}`),
		provider.TextStep("Enable MFA everywhere, patch within 48 hours, and segment the management network."),
	)
	e := newTestEngine(t, mock, true)

	state, err := e.Run(context.Background(), "how should we harden remote access?", "t1")
	require.NoError(t, err)

	assert.True(t, state.Enhanced)
	assert.True(t, state.QualityPassed, "enhanced responses are assumed to pass")
	assert.Equal(t, 3.0, state.QualityScore)
	assert.Contains(t, state.FinalAnswer, "Enable MFA everywhere")
}

func TestQualityPassSkipsEnhancement(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyDirect),
		provider.TextStep("Segment the network and enforce MFA on every ingress point."),
		provider.TextStep(`{"overall": 8.5, "feedback": "Accurate and actionable."}`),
	)
	e := newTestEngine(t, mock, true)

	state, err := e.Run(context.Background(), "how should we harden remote access?", "t1")
	require.NoError(t, err)

	assert.False(t, state.Enhanced)
	assert.True(t, state.QualityPassed)
	assert.Equal(t, 8.5, state.QualityScore)
	assert.Contains(t, state.FinalAnswer, "Segment the network")
}

func TestGatePermissiveDegradation(t *testing.T) {
	mock := provider.NewMockProvider(provider.ErrStep(errors.New("judge offline")))
	g := NewGate(mock, nil)
	ctx := context.Background()

	v := g.Validate(ctx, "q", "answer", role.IncidentResponse)
	assert.True(t, v.Passed, "an unevaluated response must not be blocked")
	assert.Equal(t, neutralScore, v.Score)

	assert.Equal(t, "original", g.Enhance(ctx, "q", "original", "feedback"))

	gr := g.CheckGroundedness(ctx, "answer", []string{"chunk"})
	assert.False(t, gr.Grounded)

	rel := g.CheckRelevance(ctx, "q", []string{"chunk"})
	assert.Zero(t, rel.Score)
}

func TestFallbackMessageByCategory(t *testing.T) {
	rateLimited := provider.NewError("mock", provider.ErrCategoryRateLimited, errors.New("429"))
	assert.Equal(t, fallbackRateLimited, FallbackMessage(rateLimited))

	timeout := provider.NewError("mock", provider.ErrCategoryTimeout, errors.New("deadline"))
	assert.Equal(t, fallbackTimeout, FallbackMessage(timeout))

	conn := provider.NewError("mock", provider.ErrCategoryConnection, errors.New("refused"))
	assert.Equal(t, fallbackConnection, FallbackMessage(conn))

	assert.Equal(t, fallbackGeneric, FallbackMessage(errors.New("anything else")))
}

func TestMergeResponsesEmpty(t *testing.T) {
	assert.Equal(t, noAnalysisMessage, mergeResponses(nil))
}

func TestLeadRolePicksHighestConfidence(t *testing.T) {
	responses := []*specialist.Response{
		{Role: role.IncidentResponse, ConfidenceScore: 0.6},
		{Role: role.Compliance, ConfidenceScore: 0.9},
	}
	assert.Equal(t, role.Compliance, leadRole(responses))
	assert.Equal(t, role.DefaultRole, leadRole(nil))
}

// A full turn for a suspicious file hash: routed to incident response, the
// specialist pulls a reputation verdict through the tool registry, and the
// quality plus retrieval checks run over the tool output.
func TestHashLookupEndToEnd(t *testing.T) {
	const hashReply = `{"summary": "The hash 44d88612fea8a8f36de82e1278abb02f is flagged malicious by 45 engines.", "recommendations": ["Block the hash at the EDR level", "Search endpoints for prior execution"], "confidence_score": 0.92}`

	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategySingleIR),
		provider.ToolCallStep(provider.ToolUseBlock{
			ID:    "tu_1",
			Name:  "ioc_analysis",
			Input: json.RawMessage(`{"indicator": "44d88612fea8a8f36de82e1278abb02f"}`),
		}),
		provider.TextStep(hashReply),
		provider.TextStep(`{"overall": 8.2, "feedback": "concrete and ordered by urgency"}`),
		provider.TextStep(`{"grounded": true, "reason": "matches the scan verdict"}`),
		provider.TextStep(`{"relevant": true, "score": 9, "reason": "scan results address the hash directly"}`),
	)

	registry := tools.NewEmptyRegistry(nil)
	registry.Register(&tools.StubTool{
		ToolName: "ioc_analysis",
		Desc:     "Analyze an indicator of compromise",
		Response: &tools.Result{Success: true, Data: map[string]interface{}{
			"classification": "malicious",
			"detections":     45,
		}},
	})

	e, err := New(Config{Provider: mock, Registry: registry, QualityGates: true})
	require.NoError(t, err)

	state, err := e.Run(context.Background(), "is the hash 44d88612fea8a8f36de82e1278abb02f malicious?", "t-hash")
	require.NoError(t, err)

	require.Len(t, state.TeamResponses, 1)
	resp := state.TeamResponses[0]
	assert.Equal(t, role.IncidentResponse, resp.Role)
	require.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, "ioc_analysis", resp.ToolsUsed[0].ToolName)
	assert.True(t, resp.ToolsUsed[0].Success)

	assert.Contains(t, state.FinalAnswer, "flagged malicious")
	assert.Contains(t, state.FinalAnswer, "## Recommendations")

	assert.True(t, state.QualityPassed)
	assert.False(t, state.Enhanced)
	assert.InDelta(t, 8.2, state.QualityScore, 0.001)

	assert.True(t, state.RAGChecked)
	assert.True(t, state.RAGGrounded)
	assert.InDelta(t, 9.0, state.RAGRelevance, 0.001)

	assert.Equal(t, 7, mock.CallCount())
}

// An EU customer-data breach consults incident response and compliance
// together, and the merged answer is judged against the lead role's
// threshold. With no tool retrievals, the retrieval checks stay off.
func TestEUBreachMultiSpecialistTurn(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyMulti),
		provider.TextStep(specialistReply), // served to both specialists
		provider.TextStep(specialistReply),
		provider.TextStep(`{"overall": 7.0, "feedback": "covers containment and notification"}`),
	)
	e := newTestEngine(t, mock, true)

	state, err := e.Run(context.Background(), "attackers exfiltrated EU customer records last night, what do we do?", "t-breach")
	require.NoError(t, err)

	require.Len(t, state.TeamResponses, 2)
	assert.Contains(t, state.FinalAnswer, "## Team Analysis Summary")
	assert.Contains(t, state.FinalAnswer, "(incident_response)")
	assert.Contains(t, state.FinalAnswer, "(compliance)")

	assert.True(t, state.QualityPassed)
	assert.InDelta(t, 7.0, state.QualityScore, 0.001)
	assert.Zero(t, state.ErrorCount)

	assert.False(t, state.RAGChecked)
	assert.Zero(t, state.RAGRelevance)

	assert.Equal(t, 5, mock.CallCount())
}

func longSpecialistReply() string {
	summary := strings.TrimSpace(strings.Repeat("Rotate exposed credentials and review identity provider logs for anomalous sessions. ", 16))
	return fmt.Sprintf(`{"summary": %q, "recommendations": ["Rotate all exposed credentials"], "confidence_score": 0.9}`, summary)
}

func TestLongTeamReportGetsCoordinatorSummary(t *testing.T) {
	const execSummary = "The team assesses the breach as contained, with credential rotation and regulator notification as the immediate priorities."

	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyMulti),
		provider.TextStep(longSpecialistReply()), // served to both specialists
		provider.TextStep(longSpecialistReply()),
		provider.TextStep(execSummary),
	)
	e := newTestEngine(t, mock, false)

	state, err := e.Run(context.Background(), "attackers stole credentials for our customer database, walk me through everything", "t1")
	require.NoError(t, err)

	require.Len(t, state.TeamResponses, 2)
	assert.Greater(t, len(state.FinalAnswer), metaSummaryThreshold)
	assert.Contains(t, state.FinalAnswer, "## Coordinator Summary")
	assert.Contains(t, state.FinalAnswer, execSummary)

	// 2 routing calls, 2 specialists, 1 coordinator.
	assert.Equal(t, 5, mock.CallCount())
}

func TestCoordinatorFailureKeepsMergedReport(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.TextStep(domainYes),
		provider.TextStep(strategyMulti),
		provider.TextStep(longSpecialistReply()),
		provider.TextStep(longSpecialistReply()),
		provider.ErrStep(provider.NewError("mock", provider.ErrCategoryOverloaded, errors.New("overloaded"))),
	)
	e := newTestEngine(t, mock, false)

	state, err := e.Run(context.Background(), "attackers stole credentials for our customer database, walk me through everything", "t1")
	require.NoError(t, err)

	assert.Contains(t, state.FinalAnswer, "## Team Analysis Summary")
	assert.NotContains(t, state.FinalAnswer, "## Coordinator Summary")
	assert.Equal(t, 5, mock.CallCount())
}
