package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
	"github.com/holst/aegis/internal/agent/specialist"
)

// noAnalysisMessage is the final answer when every specialist failed.
const noAnalysisMessage = "I couldn't gather expert analysis for your query. Please try again in a moment."

// mergeResponses turns specialist analyses into the final answer. A single
// analysis is rendered directly; multiple analyses get an attributed team
// summary with deduplicated recommendations. Input order is preserved, so
// callers must pass responses in speaking order.
func mergeResponses(responses []*specialist.Response) string {
	switch len(responses) {
	case 0:
		return noAnalysisMessage
	case 1:
		return renderSingle(responses[0])
	default:
		return renderTeam(responses)
	}
}

func renderSingle(r *specialist.Response) string {
	var b strings.Builder
	b.WriteString(r.Summary)
	if len(r.Recommendations) > 0 {
		b.WriteString("\n\n## Recommendations\n\n")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
	}
	return b.String()
}

func renderTeam(responses []*specialist.Response) string {
	var b strings.Builder
	b.WriteString("## Team Analysis Summary\n\nBased on our team's analysis, here is a consolidated view:\n\n")

	var recommendations []string
	seen := map[string]struct{}{}
	for _, r := range responses {
		fmt.Fprintf(&b, "### %s (%s)\n\n%s\n\n", r.AgentName, r.Role, r.Summary)
		for _, rec := range r.Recommendations {
			if _, dup := seen[rec]; dup {
				continue
			}
			seen[rec] = struct{}{}
			recommendations = append(recommendations, rec)
		}
	}

	if len(recommendations) > 0 {
		b.WriteString("## Consolidated Recommendations\n\n")
		for _, rec := range recommendations {
			fmt.Fprintf(&b, "- **%s**\n", rec)
		}
	}
	return b.String()
}

const metaSummaryPrompt = `**User Query:**
%s

**Team Report:**
%s

---
Write an executive summary (at most 150 words) of the team report above for a senior stakeholder. Synthesize the key findings into a holistic narrative rather than restating each specialist, and surface any disagreement between specialists explicitly. Provide only the summary text.`

// coordinate merges the specialist analyses into the final answer. When
// several specialists contributed and the combined report runs long, the
// coordinator appends an executive summary; a coordinator failure leaves
// the merged report as-is.
func (e *Engine) coordinate(ctx context.Context, state *State) {
	state.FinalAnswer = mergeResponses(state.TeamResponses)
	if len(state.TeamResponses) < 2 || len(state.FinalAnswer) <= metaSummaryThreshold {
		return
	}

	prompt := fmt.Sprintf(metaSummaryPrompt, state.Query, state.FinalAnswer)
	resp, err := e.provider.Chat(ctx, e.coordinator.Persona,
		[]provider.Message{{Role: provider.RoleUser, Content: prompt}}, nil)
	if err != nil {
		e.logger.Warn("coordinator summary failed, keeping merged report", "error", err)
		return
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return
	}
	state.FinalAnswer += "\n\n## Coordinator Summary\n\n" + summary
}

// orderBySpeakingOrder sorts responses into the fixed specialist speaking
// order so concurrent completion order never leaks into the output.
func orderBySpeakingOrder(responses []*specialist.Response) []*specialist.Response {
	ordered := make([]*specialist.Response, 0, len(responses))
	for _, ro := range role.Specialists {
		for _, r := range responses {
			if r != nil && r.Role == ro {
				ordered = append(ordered, r)
			}
		}
	}
	// Unknown roles go last rather than vanishing.
	for _, r := range responses {
		if r == nil {
			continue
		}
		var known bool
		for _, ro := range role.Specialists {
			if r.Role == ro {
				known = true
				break
			}
		}
		if !known {
			ordered = append(ordered, r)
		}
	}
	return ordered
}

// leadRole picks the role whose specialist reported the highest confidence.
// Ties resolve to the earlier response in speaking order.
func leadRole(responses []*specialist.Response) role.Role {
	if len(responses) == 0 {
		return role.DefaultRole
	}
	lead := responses[0]
	for _, r := range responses[1:] {
		if r.ConfidenceScore > lead.ConfidenceScore {
			lead = r
		}
	}
	return lead.Role
}
