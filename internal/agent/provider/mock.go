package provider

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests. Each Chat call consumes the
// next scripted step in order; when the script is exhausted the final step is
// repeated. All received calls are recorded for assertions.
type MockProvider struct {
	mu    sync.Mutex
	steps []MockStep
	next  int

	// Calls records every Chat invocation in order.
	Calls []MockCall
}

// MockStep is one scripted model response (or error).
type MockStep struct {
	Response *Response
	Err      error
}

// MockCall captures the arguments of one Chat invocation.
type MockCall struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
}

// NewMockProvider creates a mock provider with the given script.
func NewMockProvider(steps ...MockStep) *MockProvider {
	return &MockProvider{steps: steps}
}

// TextStep scripts a plain-text end-turn response.
func TextStep(content string) MockStep {
	return MockStep{Response: &Response{Content: content, StopReason: StopReasonEndTurn}}
}

// ToolCallStep scripts a response requesting the given tool calls.
func ToolCallStep(calls ...ToolUseBlock) MockStep {
	return MockStep{Response: &Response{ToolCalls: calls, StopReason: StopReasonToolUse}}
}

// ErrStep scripts a provider failure.
func ErrStep(err error) MockStep {
	return MockStep{Err: err}
}

// Chat implements Provider.
func (m *MockProvider) Chat(_ context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgCopy := make([]Message, len(messages))
	copy(msgCopy, messages)
	m.Calls = append(m.Calls, MockCall{SystemPrompt: systemPrompt, Messages: msgCopy, Tools: tools})

	if len(m.steps) == 0 {
		return &Response{Content: "", StopReason: StopReasonEndTurn}, nil
	}

	step := m.steps[m.next]
	if m.next < len(m.steps)-1 {
		m.next++
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// Model implements Provider.
func (m *MockProvider) Model() string { return "mock" }

// CallCount returns the number of Chat invocations so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
