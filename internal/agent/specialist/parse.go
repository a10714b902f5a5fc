package specialist

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/holst/aegis/internal/agent/provider"
)

// responseFormatContract is appended to every specialist system prompt. The
// parser below accepts exactly this shape.
const responseFormatContract = `## Output format

Your final reply (after any tool use) MUST be a single JSON object with this exact shape and nothing else:

{
  "summary": "<your full analysis as markdown text>",
  "recommendations": ["<specific actionable recommendation>", "..."],
  "confidence_score": <number between 0.0 and 1.0>,
  "handoff_suggestion": "<optional: another specialist role better suited to part of this question, or omit>"
}

Do not wrap the JSON in code fences. Do not add commentary before or after it.`

// structuredReply mirrors the JSON contract above.
type structuredReply struct {
	Summary           string   `json:"summary"`
	Recommendations   []string `json:"recommendations"`
	ConfidenceScore   float64  `json:"confidence_score"`
	HandoffSuggestion string   `json:"handoff_suggestion"`
}

// parseResponse extracts the structured reply from the model's final text.
// On a parse failure it re-asks once with the error attached; if that also
// fails it degrades to a minimal response rather than surfacing an error.
func (a *Agent) parseResponse(ctx context.Context, systemPrompt string, history []provider.Message, content string) (*Response, error) {
	reply, err := parseStructuredReply(content)
	if err == nil {
		return replyToResponse(reply), nil
	}

	a.logger.Warn("structured reply parse failed, re-asking", "error", err)

	history = append(history,
		provider.Message{Role: provider.RoleAssistant, Content: content},
		provider.Message{
			Role: provider.RoleUser,
			Content: "Your previous reply did not match the required JSON format (" + err.Error() +
				"). Reply again with ONLY the JSON object described in your instructions.",
		},
	)

	resp, chatErr := a.chat(ctx, systemPrompt, history, nil)
	if chatErr != nil {
		return nil, chatErr
	}

	reply, err = parseStructuredReply(resp.Content)
	if err == nil {
		return replyToResponse(reply), nil
	}

	a.logger.Error("structured reply parse failed twice, degrading", "error", err)
	return &Response{
		Summary:         "I was unable to produce a fully structured analysis for this request. Please rephrase or narrow the question and I will try again.",
		Recommendations: []string{},
		ConfidenceScore: degradedConfidence,
	}, nil
}

func replyToResponse(r *structuredReply) *Response {
	return &Response{
		Summary:           r.Summary,
		Recommendations:   r.Recommendations,
		ConfidenceScore:   clamp01(r.ConfidenceScore),
		HandoffSuggestion: r.HandoffSuggestion,
	}
}

// parseStructuredReply tolerates code fences and surrounding prose by
// extracting the outermost JSON object before unmarshalling.
func parseStructuredReply(content string) (*structuredReply, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}

	var reply structuredReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Summary) == "" {
		return nil, errEmptySummary
	}
	if reply.Recommendations == nil {
		reply.Recommendations = []string{}
	}
	return &reply, nil
}

var (
	errNoJSONObject = jsonContractError("no JSON object found in reply")
	errEmptySummary = jsonContractError("summary field is empty")
)

type jsonContractError string

func (e jsonContractError) Error() string { return string(e) }

// extractJSONObject returns the substring from the first '{' to the last
// '}'. Good enough for a single top-level object with possible fences or
// prose around it.
func extractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errNoJSONObject
	}
	return s[start : end+1], nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
