package metrics

import (
	"context"
	"time"

	"github.com/holst/aegis/internal/agent/provider"
)

// instrumentedProvider decorates a provider so every Chat call is counted
// and timed under a fixed caller label.
type instrumentedProvider struct {
	next    provider.Provider
	metrics *Metrics
	caller  string
}

// InstrumentProvider wraps p so each Chat call records an observation
// labelled with caller. A nil Metrics returns p unchanged.
func InstrumentProvider(p provider.Provider, m *Metrics, caller string) provider.Provider {
	if m == nil || p == nil {
		return p
	}
	return &instrumentedProvider{next: p, metrics: m, caller: caller}
}

func (p *instrumentedProvider) Chat(ctx context.Context, systemPrompt string, messages []provider.Message, tools []provider.ToolDefinition) (*provider.Response, error) {
	start := time.Now()
	resp, err := p.next.Chat(ctx, systemPrompt, messages, tools)
	p.metrics.ObserveModelCall(p.caller, err == nil, time.Since(start))
	return resp, err
}

func (p *instrumentedProvider) Name() string { return p.next.Name() }

func (p *instrumentedProvider) Model() string { return p.next.Model() }
