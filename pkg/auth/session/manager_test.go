package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:%s", accessID)
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{kv: store, ttl: time.Hour, now: time.Now}, store
}

func TestManagerGenerateAndRotate(t *testing.T) {
	manager, store := newTestManager()

	ctx := context.Background()
	accessID := "access-123"
	token, err := manager.Generate(ctx, accessID, 11)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored := store.data[store.AccessSessionKey(accessID)]
	if strings.Contains(stored, token) {
		t.Fatalf("raw refresh token must not be stored, got %q", stored)
	}
	if !strings.Contains(stored, digest(token)) {
		t.Fatalf("expected token digest in %q", stored)
	}

	if _, _, err := manager.Rotate(ctx, accessID, 11, "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token error, got %v", err)
	}

	newAccessID, newToken, err := manager.Rotate(ctx, accessID, 11, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, exists := store.data[store.AccessSessionKey(accessID)]; exists {
		t.Fatalf("old access key left behind")
	}
	if stored := store.data[store.AccessSessionKey(newAccessID)]; !strings.Contains(stored, digest(newToken)) {
		t.Fatalf("expected new grant stored, got %q", stored)
	}
	if _, _, err := manager.Rotate(ctx, accessID, 11, token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("rotated token must not be redeemable twice, got %v", err)
	}
}

func TestManagerRotateRejectsOtherUser(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	token, err := manager.Generate(ctx, "access-1", 11)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, _, err := manager.Rotate(ctx, "access-1", 12, token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected rotation by another user to fail, got %v", err)
	}
}

func TestManagerRevokeAndHasSession(t *testing.T) {
	manager, _ := newTestManager()
	ctx := context.Background()

	if _, err := manager.Generate(ctx, "access-9", 3); err != nil {
		t.Fatalf("generate: %v", err)
	}
	ok, err := manager.HasSession(ctx, "access-9")
	if err != nil || !ok {
		t.Fatalf("expected active session, ok=%v err=%v", ok, err)
	}

	if err := manager.Revoke(ctx, "access-9"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, "access-9")
	if err != nil || ok {
		t.Fatalf("expected revoked session, ok=%v err=%v", ok, err)
	}

	if _, _, err := manager.Rotate(ctx, "access-9", 3, "anything"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected missing session to be invalid, got %v", err)
	}
}

func TestManagerGenerateValidatesInput(t *testing.T) {
	manager, _ := newTestManager()
	if _, err := manager.Generate(context.Background(), " ", 1); err == nil {
		t.Fatal("expected error for blank access id")
	}
	if _, err := manager.Generate(context.Background(), "access", 0); err == nil {
		t.Fatal("expected error for missing user id")
	}
}
