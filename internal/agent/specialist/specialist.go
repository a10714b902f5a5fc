// Package specialist implements the bounded tool-calling loop that turns a
// role configuration into an advisory agent.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
	"github.com/holst/aegis/internal/agent/tools"
)

const (
	// DefaultMaxToolIterations bounds the tool-calling loop.
	DefaultMaxToolIterations = 5

	// degradedConfidence is reported when the model's final content could
	// not be parsed even after a corrective re-ask.
	degradedConfidence = 0.5

	// uncorroboratedConfidenceCap limits confidence when the query looked
	// like it needed tool evidence but no tool was invoked.
	uncorroboratedConfidenceCap = 0.8

	// invocationResultLimit caps the raw result text retained per tool
	// call for downstream groundedness checks.
	invocationResultLimit = 500
)

// Invocation records a single tool call made during a specialist turn.
type Invocation struct {
	ToolName   string          `json:"tool_name"`
	Input      json.RawMessage `json:"input"`
	Success    bool            `json:"success"`
	Summary    string          `json:"summary,omitempty"`
	ResultText string          `json:"result_text,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// Response is the structured output of one specialist turn.
type Response struct {
	Role              role.Role    `json:"role"`
	AgentName         string       `json:"agent_name"`
	Summary           string       `json:"summary"`
	Recommendations   []string     `json:"recommendations"`
	ConfidenceScore   float64      `json:"confidence_score"`
	HandoffSuggestion string       `json:"handoff_suggestion,omitempty"`
	ToolsUsed         []Invocation `json:"tools_used,omitempty"`
}

// Agent runs the tool loop for a single role.
type Agent struct {
	cfg           role.Config
	provider      provider.Provider
	registry      *tools.Registry
	logger        *slog.Logger
	maxIterations int

	// needsTools classifies whether a query plausibly requires tool
	// evidence. Pluggable so routing experiments don't touch loop logic.
	needsTools ToolNecessityFunc
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxIterations overrides the tool-loop bound.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithToolNecessityFunc replaces the keyword heuristic used for the
// confidence cap.
func WithToolNecessityFunc(f ToolNecessityFunc) Option {
	return func(a *Agent) {
		if f != nil {
			a.needsTools = f
		}
	}
}

// New creates a specialist agent for the given role configuration.
func New(cfg role.Config, p provider.Provider, registry *tools.Registry, logger *slog.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		cfg:           cfg,
		provider:      p,
		registry:      registry,
		logger:        logger.With("agent", string(cfg.Role)),
		maxIterations: DefaultMaxToolIterations,
		needsTools:    DefaultToolNecessity,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Role returns the agent's role.
func (a *Agent) Role() role.Role { return a.cfg.Role }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.cfg.DisplayName }

// Respond runs the bounded tool loop over the given message history and
// returns the specialist's structured response. Provider errors propagate to
// the caller; tool failures and malformed model output are recovered
// locally.
func (a *Agent) Respond(ctx context.Context, msgs []provider.Message) (*Response, error) {
	history := make([]provider.Message, len(msgs))
	copy(history, msgs)

	systemPrompt := a.cfg.Persona + "\n\n" + responseFormatContract
	toolDefs := a.registry.ToProviderTools(a.cfg.Tools)

	var invocations []Invocation
	var finalContent string

	for iteration := 0; ; iteration++ {
		if iteration >= a.maxIterations {
			// Tool budget spent: demand a synthesis and take whatever
			// comes back, tool calls ignored.
			history = append(history, provider.Message{
				Role:    provider.RoleUser,
				Content: "You have used your tool budget for this turn. Synthesize your final answer now from the information you already have, in the required JSON format. Do not request any more tools.",
			})
			resp, err := a.chat(ctx, systemPrompt, history, nil)
			if err != nil {
				return nil, err
			}
			finalContent = resp.Content
			break
		}

		resp, err := a.chat(ctx, systemPrompt, history, toolDefs)
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		a.logger.Debug("model requested tools",
			"iteration", iteration,
			"count", len(resp.ToolCalls))

		assistantMsg := provider.Message{
			Role:    provider.RoleAssistant,
			Content: resp.Content,
		}
		resultMsg := provider.Message{Role: provider.RoleUser}

		for _, call := range resp.ToolCalls {
			assistantMsg.ToolUse = append(assistantMsg.ToolUse, provider.ToolUseBlock{
				ID:    call.ID,
				Name:  call.Name,
				Input: call.Input,
			})

			inv, resultJSON := a.invoke(ctx, call)
			invocations = append(invocations, inv)

			resultMsg.ToolResult = append(resultMsg.ToolResult, provider.ToolResultBlock{
				ToolUseID: call.ID,
				Content:   resultJSON,
				IsError:   !inv.Success,
			})
		}

		history = append(history, assistantMsg, resultMsg)
	}

	response, err := a.parseResponse(ctx, systemPrompt, history, finalContent)
	if err != nil {
		return nil, err
	}

	response.Role = a.cfg.Role
	response.AgentName = a.cfg.DisplayName
	response.ToolsUsed = invocations

	if len(invocations) == 0 && a.needsTools(lastUserText(msgs)) &&
		response.ConfidenceScore > uncorroboratedConfidenceCap {
		a.logger.Warn("query warranted tool evidence but no tools were used, capping confidence",
			"reported", response.ConfidenceScore,
			"cap", uncorroboratedConfidenceCap)
		response.ConfidenceScore = uncorroboratedConfidenceCap
	}

	return response, nil
}

// invoke executes one requested tool call, enforcing the role's permission
// set. Denials and failures come back as error results for the model, never
// as Go errors.
func (a *Agent) invoke(ctx context.Context, call provider.ToolUseBlock) (Invocation, string) {
	start := time.Now()

	if !a.cfg.Permitted(call.Name) {
		a.logger.Warn("tool call denied", "tool", call.Name)
		inv := Invocation{
			ToolName:   call.Name,
			Input:      call.Input,
			Success:    false,
			Summary:    "permission denied",
			DurationMs: time.Since(start).Milliseconds(),
		}
		msg := fmt.Sprintf("tool %q is not available to the %s specialist; use one of your permitted tools or answer from your own expertise", call.Name, a.cfg.Role)
		return inv, errorResultJSON(msg)
	}

	result := a.registry.Execute(ctx, call.Name, call.Input)

	inv := Invocation{
		ToolName:   call.Name,
		Input:      call.Input,
		Success:    result.Success,
		Summary:    result.Summary,
		DurationMs: result.ExecutionTimeMs,
	}
	if result.Success && result.Data != nil {
		if data, err := json.Marshal(result.Data); err == nil {
			inv.ResultText = truncateString(string(data), invocationResultLimit)
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return inv, errorResultJSON(fmt.Sprintf("failed to encode tool result: %v", err))
	}

	a.logger.Debug("tool executed",
		"tool", call.Name,
		"success", result.Success,
		"duration_ms", result.ExecutionTimeMs)

	return inv, string(payload)
}

// chat performs one provider call under the role's timeout.
func (a *Agent) chat(ctx context.Context, systemPrompt string, history []provider.Message, toolDefs []provider.ToolDefinition) (*provider.Response, error) {
	callCtx := ctx
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	resp, err := a.provider.Chat(callCtx, systemPrompt, history, toolDefs)
	if err != nil {
		return nil, fmt.Errorf("%s model call: %w", a.cfg.Role, err)
	}
	return resp, nil
}

func errorResultJSON(msg string) string {
	payload, _ := json.Marshal(tools.Result{Success: false, Error: msg})
	return string(payload)
}

func lastUserText(msgs []provider.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == provider.RoleUser && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
