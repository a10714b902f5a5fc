package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
)

const summarizerBasePrompt = `You are an expert cybersecurity analyst creating conversation summaries.

Create a concise but comprehensive summary that preserves:
- Key security issues or incidents discussed
- Important recommendations or decisions made
- Technical details that provide context
- Action items or next steps mentioned
- Compliance or regulatory considerations

Keep the summary under 300 words but ensure no critical information is lost.`

// summarizerFocus tailors the summary to the specialist that led the thread.
var summarizerFocus = map[role.Role]string{
	role.IncidentResponse: "Focus especially on incident details, timeline, and response actions.",
	role.Prevention:       "Emphasize security controls, preventive measures, and risk mitigation strategies.",
	role.Compliance:       "Highlight regulatory requirements, policy discussions, and compliance obligations.",
	role.ThreatIntel:      "Focus on threat analysis, indicators, and intelligence insights.",
}

// Summarizer compresses conversation history with a model call, degrading to
// a mechanical digest when the model is unavailable.
type Summarizer struct {
	provider provider.Provider
	logger   *slog.Logger
}

// NewSummarizer creates a summarizer backed by the given provider. A nil
// provider is allowed; every call then takes the fallback path.
func NewSummarizer(p provider.Provider, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{provider: p, logger: logger.With("component", "summarizer")}
}

// Summarize produces a summary of msgs, focused on the given lead role.
// It never fails: model errors degrade to FallbackSummary.
func (s *Summarizer) Summarize(ctx context.Context, msgs []Message, lead role.Role) string {
	if len(msgs) == 0 {
		return ""
	}
	if s.provider == nil {
		return FallbackSummary(msgs)
	}

	system := summarizerBasePrompt
	if focus, ok := summarizerFocus[lead]; ok {
		system += "\n" + focus
	}
	resp, err := s.provider.Chat(ctx, system, []provider.Message{{
		Role:    provider.RoleUser,
		Content: "Conversation to summarize:\n\n" + formatForSummary(msgs),
	}}, nil)
	if err != nil {
		s.logger.Warn("summarization failed, using fallback", "error", err)
		return FallbackSummary(msgs)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return FallbackSummary(msgs)
	}
	return summary
}

// fallbackWindow bounds how many recent turns the mechanical digest covers.
const fallbackWindow = 5

// FallbackSummary builds a digest of recent turns without a model call.
func FallbackSummary(msgs []Message) string {
	if len(msgs) == 0 {
		return "No conversation history available."
	}
	var parts []string
	for _, m := range msgs {
		content := m.Content
		if len(content) > 100 {
			content = content[:100]
		}
		switch m.Role {
		case "user":
			parts = append(parts, fmt.Sprintf("User asked about: %s", content))
		case "assistant":
			who := "System"
			if m.AgentUsed != "" {
				who = string(m.AgentUsed)
			}
			parts = append(parts, fmt.Sprintf("%s advised on: %s", who, content))
		}
	}
	if len(parts) > fallbackWindow {
		parts = parts[len(parts)-fallbackWindow:]
	}
	return strings.Join(parts, " | ")
}
