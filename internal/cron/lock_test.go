package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	data map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryLockStore) LockKey(name string) string { return "wb:lock:" + name }

func TestRedisLockIsExclusive(t *testing.T) {
	store := &memoryLockStore{data: map[string]string{}}
	first, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, store.data, "wb:lock:cron")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.data, "wb:lock:cron")

	require.NoError(t, first.Release(ctx))
	require.NotContains(t, store.data, "wb:lock:cron")
}

func TestRedisLockDoesNotDeleteForeignOwner(t *testing.T) {
	store := &memoryLockStore{data: map[string]string{}}
	lock, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = lock.Acquire(ctx)
	require.NoError(t, err)
	store.data["wb:lock:cron"] = "someone-else"

	require.NoError(t, lock.Release(ctx))
	require.Equal(t, "someone-else", store.data["wb:lock:cron"])
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "cron", 0)
	require.Error(t, err)
	_, err = NewRedisLock(&memoryLockStore{}, "", 0)
	require.Error(t, err)
}
