package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an idle thread survives before expiring. Every Put
// refreshes the clock.
const DefaultTTL = 24 * time.Hour

// RedisStore persists snapshots in redis as JSON blobs keyed by thread.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisStore wraps an existing redis client. ttl <= 0 uses DefaultTTL.
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) key(threadID string) string {
	return fmt.Sprintf("aegis:thread:%s:checkpoint", threadID)
}

func (s *RedisStore) Get(ctx context.Context, threadID string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return &snap, nil
}

func (s *RedisStore) Put(ctx context.Context, threadID string, snap *Snapshot) error {
	cp := *snap
	cp.ThreadID = threadID
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	raw, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", threadID, err)
	}
	if err := s.rdb.Set(ctx, s.key(threadID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store checkpoint %s: %w", threadID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	if err := s.rdb.Del(ctx, s.key(threadID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", threadID, err)
	}
	return nil
}
