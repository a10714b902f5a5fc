package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
)

// neutralScore is reported when the evaluator itself fails. It sits below
// every role threshold's passing range on purpose: an unevaluated response
// passes but never looks excellent.
const neutralScore = 5.0

// evaluationCriteria describes what the judge scores per specialist.
var evaluationCriteria = map[role.Role]string{
	role.IncidentResponse: "Containment and recovery guidance must be concrete, ordered by urgency, and technically sound. Vague 'stay calm' advice scores low.",
	role.Prevention:       "Controls must be specific and implementable, with clear risk reduction reasoning. Generic checklists score low.",
	role.ThreatIntel:      "Claims about actors, TTPs, and indicators must be precise and appropriately caveated. Unsupported attribution scores low.",
	role.Compliance:       "Regulatory obligations must name the framework, the deadline, and the required action. Hand-waving about 'consulting legal' scores low.",
}

// Verdict is the judge's assessment of a response.
type Verdict struct {
	Passed   bool    `json:"passed"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Groundedness reports whether an answer is supported by retrieved context.
type Groundedness struct {
	Grounded bool   `json:"grounded"`
	Reason   string `json:"reason"`
}

// Relevance scores how well retrieved context fits the query.
type Relevance struct {
	Relevant bool    `json:"relevant"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// Gate is the LLM-as-a-judge quality system. Every method degrades
// permissively: an evaluator failure never blocks the user's answer.
type Gate struct {
	provider provider.Provider
	logger   *slog.Logger
}

// NewGate creates a quality gate backed by the given provider.
func NewGate(p provider.Provider, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{provider: p, logger: logger.With("component", "quality_gate")}
}

const validatePrompt = `You are an expert cybersecurity evaluator. Evaluate the following response with strict objectivity.

**Original Query:**
%s

**Agent Type:**
%s

**Agent Response to Evaluate:**
%s

---
**Evaluation Criteria:**
%s

**Instructions:**
Be thorough and critical. Assess technical accuracy, completeness, actionability, and tone. If this is a follow-up question, the response building on earlier context is correct behavior, not a deficiency.

Return ONLY a valid JSON object:
{"overall": <score 0.0-10.0>, "feedback": "<specific issues or strengths>"}`

// Validate scores a response against the given role's criteria. The pass
// threshold is the role's configured quality threshold. On evaluator
// failure the response passes with a neutral score.
func (g *Gate) Validate(ctx context.Context, query, answer string, agentType role.Role) Verdict {
	criteria, ok := evaluationCriteria[agentType]
	if !ok {
		criteria = evaluationCriteria[role.DefaultRole]
	}
	prompt := fmt.Sprintf(validatePrompt, query, agentType, answer, criteria)

	resp, err := g.provider.Chat(ctx, "", []provider.Message{{Role: provider.RoleUser, Content: prompt}}, nil)
	if err != nil {
		g.logger.Warn("quality validation failed, passing response unevaluated", "role", agentType, "error", err)
		return Verdict{Passed: true, Score: neutralScore, Feedback: "quality evaluation could not be performed"}
	}

	var result struct {
		Overall  float64 `json:"overall"`
		Feedback string  `json:"feedback"`
	}
	if err := decodeJudgeJSON(resp.Content, &result); err != nil {
		g.logger.Warn("quality verdict unparseable, passing response unevaluated", "role", agentType, "error", err)
		return Verdict{Passed: true, Score: neutralScore, Feedback: "quality evaluation could not be performed"}
	}

	threshold := role.QualityThreshold(agentType)
	return Verdict{
		Passed:   result.Overall >= threshold,
		Score:    result.Overall,
		Feedback: result.Feedback,
	}
}

const enhancePrompt = `You are an expert cybersecurity advisor improving a team member's work.

**Original Query:**
%s

**Original Response (needs improvement):**
%s

---
**Quality Issues to Address:**
%s

---
Address all issues in the feedback, keep the valuable parts of the original, and keep the answer technically accurate and actionable. Provide only the improved, final response.`

// Enhance rewrites a response that failed validation. On failure the
// original response is returned unchanged.
func (g *Gate) Enhance(ctx context.Context, query, answer, feedback string) string {
	prompt := fmt.Sprintf(enhancePrompt, query, answer, feedback)

	resp, err := g.provider.Chat(ctx, "", []provider.Message{{Role: provider.RoleUser, Content: prompt}}, nil)
	if err != nil {
		g.logger.Warn("response enhancement failed, keeping original", "error", err)
		return answer
	}
	enhanced := strings.TrimSpace(resp.Content)
	if enhanced == "" {
		return answer
	}
	return enhanced
}

const groundednessPrompt = `You are a meticulous fact-checker. Determine whether the statement below is fully supported by the provided context.

**Context:**
%s

---
**Statement to Verify:**
%s

---
The statement must be directly supported by the context. Respond with ONLY a JSON object:
{"grounded": <true or false>, "reason": "<brief explanation>"}`

// CheckGroundedness verifies that the answer is supported by the retrieved
// context chunks. On evaluator failure the answer is reported as not
// grounded.
func (g *Gate) CheckGroundedness(ctx context.Context, answer string, chunks []string) Groundedness {
	prompt := fmt.Sprintf(groundednessPrompt, strings.Join(chunks, "\n---\n"), answer)

	resp, err := g.provider.Chat(ctx, "", []provider.Message{{Role: provider.RoleUser, Content: prompt}}, nil)
	if err != nil {
		g.logger.Warn("groundedness check failed", "error", err)
		return Groundedness{Grounded: false, Reason: "evaluation failed"}
	}
	var result Groundedness
	if err := decodeJudgeJSON(resp.Content, &result); err != nil {
		g.logger.Warn("groundedness verdict unparseable", "error", err)
		return Groundedness{Grounded: false, Reason: "evaluation failed"}
	}
	return result
}

const relevancePrompt = `You are a relevance assessor. Determine whether the provided context is relevant for answering the user's query.

**User Query:**
%s

---
**Context to Evaluate:**
%s

---
Respond with ONLY a JSON object:
{"relevant": <true or false>, "score": <1-10>, "reason": "<brief explanation>"}`

// CheckRelevance scores how relevant the retrieved context is to the query.
// On evaluator failure the score is zero.
func (g *Gate) CheckRelevance(ctx context.Context, query string, chunks []string) Relevance {
	prompt := fmt.Sprintf(relevancePrompt, query, strings.Join(chunks, "\n---\n"))

	resp, err := g.provider.Chat(ctx, "", []provider.Message{{Role: provider.RoleUser, Content: prompt}}, nil)
	if err != nil {
		g.logger.Warn("relevance check failed", "error", err)
		return Relevance{Relevant: false, Score: 0, Reason: "evaluation failed"}
	}
	var result Relevance
	if err := decodeJudgeJSON(resp.Content, &result); err != nil {
		g.logger.Warn("relevance verdict unparseable", "error", err)
		return Relevance{Relevant: false, Score: 0, Reason: "evaluation failed"}
	}
	return result
}

// decodeJudgeJSON extracts the outermost JSON object from a judge reply,
// tolerating surrounding prose or code fences.
func decodeJudgeJSON(s string, out interface{}) error {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in judge reply")
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}
