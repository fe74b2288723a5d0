package cache

import (
	"context"
	"time"

	"github.com/c-pro/geche"
)

// MemoryStore is an in-process TTL cache used when no Redis address is
// configured (single-node deployments, tests). The TTL is cache-wide:
// geche's TTL map expires entries at a fixed horizon, so the per-call ttl
// argument is ignored. All history query keys share DefaultTTL, which keeps
// the two backends equivalent in practice.
type MemoryStore struct {
	entries geche.Geche[string, []byte]
}

func NewMemoryStore(ctx context.Context, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: geche.NewMapTTLCache[string, []byte](ctx, ttl, time.Second),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := s.entries.Get(key)
	if err != nil {
		// The only error the TTL map returns is a miss.
		return nil, false, nil
	}
	return data, true, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.entries.Set(key, value)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	_ = s.entries.Del(key)
	return nil
}
