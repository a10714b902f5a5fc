package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
)

func TestHistoryWindowTrimsOldest(t *testing.T) {
	h := NewHistory(4)
	for i := 0; i < 6; i++ {
		h.AddUser(strings.Repeat("q", i+1))
	}
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, 6, h.Total())

	msgs := h.Messages()
	assert.Equal(t, "qqq", msgs[0].Content, "two oldest turns should be gone")
}

func TestHistoryKeepsImportantMessages(t *testing.T) {
	h := NewHistory(3)
	pinned := h.AddUser("the breach affected the EU customer database")
	h.MarkImportant(pinned)
	for i := 0; i < 5; i++ {
		h.AddUser("follow-up")
	}

	var found bool
	for _, m := range h.Messages() {
		if m.ID == pinned {
			found = true
		}
	}
	assert.True(t, found, "pinned message must survive trimming")
	assert.LessOrEqual(t, h.Len(), 3)
}

func TestProviderMessagesRoundTrip(t *testing.T) {
	h := NewHistory(0)
	h.AddUser("is 1.2.3.4 malicious?")
	h.AddAssistant("yes, block it", role.IncidentResponse, []string{"ioc_analysis"}, 0.9)

	wire := h.ProviderMessages()
	require.Len(t, wire, 2)
	assert.Equal(t, provider.RoleUser, wire[0].Role)
	assert.Equal(t, provider.RoleAssistant, wire[1].Role)

	restored := NewHistory(0)
	restored.Restore(wire)
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, "yes, block it", restored.Messages()[1].Content)
}

func TestSummaryStats(t *testing.T) {
	h := NewHistory(0)
	h.AddUser("q1")
	h.AddAssistant("a1", role.IncidentResponse, []string{"ioc_analysis"}, 0.8)
	h.AddAssistant("a2", role.Compliance, []string{"compliance_guidance"}, 0.6)

	s := h.Summary()
	assert.Equal(t, 3, s.TotalMessages)
	assert.Len(t, s.AgentsUsed, 2)
	assert.Len(t, s.ToolsUsed, 2)
	assert.InDelta(t, 0.7, s.AvgConfidence, 1e-9)
}

func TestSummarizerUsesModel(t *testing.T) {
	mock := provider.NewMockProvider(provider.TextStep("Discussed ransomware containment; next step is isolating host A."))
	s := NewSummarizer(mock, nil)

	h := NewHistory(0)
	h.AddUser("we found ransomware on host A")
	h.AddAssistant("isolate it from the network", role.IncidentResponse, nil, 0.9)

	got := s.Summarize(context.Background(), h.Messages(), role.IncidentResponse)
	assert.Contains(t, got, "ransomware containment")

	// The lead role focuses the system prompt.
	require.Equal(t, 1, mock.CallCount())
	assert.Contains(t, mock.Calls[0].SystemPrompt, "incident details")
}

func TestSummarizerFallsBackOnError(t *testing.T) {
	mock := provider.NewMockProvider(provider.ErrStep(errors.New("model offline")))
	s := NewSummarizer(mock, nil)

	h := NewHistory(0)
	h.AddUser("we found ransomware on host A")

	got := s.Summarize(context.Background(), h.Messages(), role.IncidentResponse)
	assert.Contains(t, got, "User asked about: we found ransomware")
}

func TestFallbackSummaryEmpty(t *testing.T) {
	assert.Equal(t, "No conversation history available.", FallbackSummary(nil))
}
