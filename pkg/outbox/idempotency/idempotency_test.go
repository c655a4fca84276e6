package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memoryStore mimics SETNX/DEL semantics closely enough for claim tests.
type memoryStore struct {
	values map[string]any
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, _ := s.values[key].(string)
	return v, nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, taken := s.values[key]; taken {
		return false, nil
	}
	s.values[key] = value
	s.ttls[key] = ttl
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "wb:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestNewManagerRejectsBadInput(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)

	_, err = NewManager(newMemoryStore(), -time.Second)
	require.Error(t, err)

	_, err = NewManager(newMemoryStore(), 0)
	require.NoError(t, err)
}

func TestClaimIsTakenOnce(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return fixed }

	ctx := context.Background()
	eventID := uuid.New()
	key := "wb:idempotency:evt:processed:analytics:" + eventID.String()

	seen, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.False(t, seen)
	require.Equal(t, "2025-05-01T12:00:00Z", store.values[key])
	require.Equal(t, 24*time.Hour, store.ttls[key])

	seen, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestClaimsAreScopedPerConsumer(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	seen, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = manager.CheckAndMarkProcessed(ctx, "mailer", eventID)
	require.NoError(t, err)
	require.False(t, seen)
}

func TestReleaseAllowsRetry(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, "analytics", eventID))

	seen, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.False(t, seen)
}

func TestClaimErrors(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.CheckAndMarkProcessed(ctx, "  ", uuid.New())
	require.Error(t, err)

	_, err = manager.CheckAndMarkProcessed(ctx, "analytics", uuid.Nil)
	require.Error(t, err)

	require.Error(t, manager.Release(ctx, "", uuid.New()))

	store.err = errors.New("redis down")
	_, err = manager.CheckAndMarkProcessed(ctx, "analytics", uuid.New())
	require.ErrorIs(t, err, store.err)
}
