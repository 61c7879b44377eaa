package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/outreach-backend/internal/selection"
)

var ErrSelectionNotFound = errors.New("selection not found")

func selectionKey(id uuid.UUID) string { return "selection:" + id.String() }

// RedisSelectionStore keeps selection state as JSON with a sliding TTL.
type RedisSelectionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSelectionStore(client *redis.Client, ttl time.Duration) *RedisSelectionStore {
	return &RedisSelectionStore{client: client, ttl: ttl}
}

func (s *RedisSelectionStore) Save(ctx context.Context, id uuid.UUID, state *selection.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	return s.client.Set(ctx, selectionKey(id), data, s.ttl).Err()
}

func (s *RedisSelectionStore) Load(ctx context.Context, id uuid.UUID) (*selection.State, error) {
	data, err := s.client.Get(ctx, selectionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSelectionNotFound
	}
	if err != nil {
		return nil, err
	}
	state := selection.New()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode selection %s: %w", id, err)
	}
	return state, nil
}

// MemorySelectionStore is the single-process stand-in used without Redis.
type MemorySelectionStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemorySelectionStore(ttl time.Duration) *MemorySelectionStore {
	return &MemorySelectionStore{entries: map[uuid.UUID]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (s *MemorySelectionStore) Save(_ context.Context, id uuid.UUID, state *selection.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{data: data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemorySelectionStore) Load(_ context.Context, id uuid.UUID) (*selection.State, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.ttl > 0 && !s.now().Before(e.expires) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrSelectionNotFound
	}
	state := selection.New()
	if err := json.Unmarshal(e.data, state); err != nil {
		return nil, fmt.Errorf("decode selection %s: %w", id, err)
	}
	return state, nil
}
