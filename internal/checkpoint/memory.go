package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/holst/aegis/internal/agent/provider"
)

func cloneMessages(msgs []provider.Message) []provider.Message {
	if msgs == nil {
		return nil
	}
	out := make([]provider.Message, len(msgs))
	copy(out, msgs)
	return out
}

// MemoryStore keeps snapshots in process memory. It is the default backend
// and the one used in tests; state is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*Snapshot)}
}

func (s *MemoryStore) Get(_ context.Context, threadID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *snap
	cp.Messages = cloneMessages(snap.Messages)
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, threadID string, snap *Snapshot) error {
	cp := *snap
	cp.ThreadID = threadID
	cp.Messages = cloneMessages(snap.Messages)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	s.snaps[threadID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.snaps, threadID)
	s.mu.Unlock()
	return nil
}
