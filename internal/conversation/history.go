// Package conversation manages per-thread message history: a sliding window
// over recent turns plus model-generated summaries of what the window drops.
package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
)

// DefaultMaxMessages is the sliding-window size.
const DefaultMaxMessages = 20

// Message is one turn of the conversation with advisory metadata attached.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	AgentUsed       role.Role `json:"agent_used,omitempty"`
	ToolsUsed       []string  `json:"tools_used,omitempty"`
	ConfidenceScore float64   `json:"confidence_score,omitempty"`

	// Important messages survive window trimming.
	Important bool `json:"important,omitempty"`
}

// History is a per-thread sliding window. It is a local helper, not a store:
// persistence is the checkpoint layer's job. Not safe for concurrent use.
type History struct {
	messages    []Message
	maxMessages int

	startedAt time.Time
	total     int
}

// NewHistory creates a history with the given window size. size <= 0 uses
// DefaultMaxMessages.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultMaxMessages
	}
	return &History{maxMessages: size, startedAt: time.Now()}
}

// AddUser appends a user turn and returns its message id.
func (h *History) AddUser(content string) string {
	return h.add(Message{Role: "user", Content: content})
}

// AddAssistant appends an assistant turn with its attribution metadata.
func (h *History) AddAssistant(content string, agent role.Role, tools []string, confidence float64) string {
	return h.add(Message{
		Role:            "assistant",
		Content:         content,
		AgentUsed:       agent,
		ToolsUsed:       tools,
		ConfidenceScore: confidence,
	})
}

func (h *History) add(m Message) string {
	m.ID = uuid.NewString()
	m.Timestamp = time.Now()
	h.messages = append(h.messages, m)
	h.total++
	h.trim()
	return m.ID
}

// trim drops the oldest unimportant messages once the window overflows.
// Important messages are retained ahead of recency.
func (h *History) trim() {
	if len(h.messages) <= h.maxMessages {
		return
	}
	var important []Message
	for _, m := range h.messages {
		if m.Important {
			important = append(important, m)
		}
	}
	recentBudget := h.maxMessages - len(important)
	if recentBudget <= 0 {
		h.messages = important[len(important)-h.maxMessages:]
		return
	}
	var recent []Message
	for _, m := range h.messages[len(h.messages)-recentBudget:] {
		if !m.Important {
			recent = append(recent, m)
		}
	}
	h.messages = append(important, recent...)
}

// MarkImportant pins a message so trimming keeps it.
func (h *History) MarkImportant(id string) {
	for i := range h.messages {
		if h.messages[i].ID == id {
			h.messages[i].Important = true
			return
		}
	}
}

// Messages returns a copy of the current window.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len reports the current window size; Total counts all turns ever added.
func (h *History) Len() int   { return len(h.messages) }
func (h *History) Total() int { return h.total }

// ProviderMessages converts the window into the model wire format.
func (h *History) ProviderMessages() []provider.Message {
	out := make([]provider.Message, 0, len(h.messages))
	for _, m := range h.messages {
		r := provider.RoleUser
		if m.Role == "assistant" {
			r = provider.RoleAssistant
		}
		out = append(out, provider.Message{Role: r, Content: m.Content})
	}
	return out
}

// Restore replaces the window with previously checkpointed messages.
func (h *History) Restore(msgs []provider.Message) {
	h.messages = h.messages[:0]
	for _, m := range msgs {
		r := "user"
		if m.Role == provider.RoleAssistant {
			r = "assistant"
		}
		h.messages = append(h.messages, Message{
			ID:        uuid.NewString(),
			Role:      r,
			Content:   m.Content,
			Timestamp: time.Now(),
		})
	}
	h.total = len(h.messages)
	h.trim()
}

// Clear resets the window and counters.
func (h *History) Clear() {
	h.messages = h.messages[:0]
	h.total = 0
	h.startedAt = time.Now()
}

// Stats summarizes the conversation for observability surfaces.
type Stats struct {
	TotalMessages int           `json:"total_messages"`
	WindowLength  int           `json:"window_length"`
	Duration      time.Duration `json:"duration"`
	AgentsUsed    []string      `json:"agents_used"`
	ToolsUsed     []string      `json:"tools_used"`
	AvgConfidence float64       `json:"avg_confidence"`
}

// Summary computes conversation statistics over the current window.
func (h *History) Summary() Stats {
	agents := map[string]struct{}{}
	toolSet := map[string]struct{}{}
	var confSum float64
	var confN int
	for _, m := range h.messages {
		if m.AgentUsed != "" {
			agents[string(m.AgentUsed)] = struct{}{}
		}
		for _, t := range m.ToolsUsed {
			toolSet[t] = struct{}{}
		}
		if m.ConfidenceScore > 0 {
			confSum += m.ConfidenceScore
			confN++
		}
	}
	s := Stats{
		TotalMessages: h.total,
		WindowLength:  len(h.messages),
		Duration:      time.Since(h.startedAt),
	}
	for a := range agents {
		s.AgentsUsed = append(s.AgentsUsed, a)
	}
	for t := range toolSet {
		s.ToolsUsed = append(s.ToolsUsed, t)
	}
	if confN > 0 {
		s.AvgConfidence = confSum / float64(confN)
	}
	return s
}

// formatForSummary renders the most recent turns as plain text for the
// summarizer model.
func formatForSummary(msgs []Message) string {
	if len(msgs) > DefaultMaxMessages {
		msgs = msgs[len(msgs)-DefaultMaxMessages:]
	}
	var b strings.Builder
	for _, m := range msgs {
		ts := m.Timestamp.Format("15:04")
		switch m.Role {
		case "user":
			fmt.Fprintf(&b, "[%s] User: %s\n", ts, m.Content)
		case "assistant":
			who := "Assistant"
			if m.AgentUsed != "" {
				who = string(m.AgentUsed)
			}
			fmt.Fprintf(&b, "[%s] %s: %s\n", ts, who, m.Content)
		}
	}
	return b.String()
}
