// Package checkpoint persists per-thread conversation state so a thread can
// resume across turns and across process restarts.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/role"
)

// ErrNotFound is returned when a thread has no stored snapshot.
var ErrNotFound = errors.New("checkpoint: thread not found")

// Snapshot is everything the workflow needs to resume a thread.
type Snapshot struct {
	ThreadID string `json:"thread_id"`

	// Messages holds the trimmed conversation history.
	Messages []provider.Message `json:"messages"`

	// Summary compresses messages dropped by history trimming.
	Summary string `json:"summary,omitempty"`

	// ContextHint and ActiveRole feed the router's continuity check.
	ContextHint string    `json:"context_hint,omitempty"`
	ActiveRole  role.Role `json:"active_role,omitempty"`

	TurnCount int       `json:"turn_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a thread-keyed snapshot store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get loads the snapshot for a thread, or ErrNotFound.
	Get(ctx context.Context, threadID string) (*Snapshot, error)

	// Put stores or replaces the snapshot for a thread.
	Put(ctx context.Context, threadID string, snap *Snapshot) error

	// Delete removes a thread's snapshot. Deleting an absent thread is not
	// an error.
	Delete(ctx context.Context, threadID string) error
}
