// Package session keeps refresh grants in Redis, keyed by the access token's
// jti. A grant exists for as long as the refresh token may be redeemed.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	pkgredis "github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

const tokenEntropy = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type kv interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// grant is stored per access id. Only a digest of the refresh token is kept.
type grant struct {
	UserID   int64     `json:"uid"`
	Digest   string    `json:"rt"`
	IssuedAt time.Time `json:"iat"`
}

// AccessSessionChecker is what the identity middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	kv  kv
	ttl time.Duration
	now func() time.Time
}

func NewManager(client *pkgredis.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("session: redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= access {
		return nil, fmt.Errorf("session: refresh ttl %s must be longer than access ttl %s", ttl, access)
	}
	return &Manager{kv: client, ttl: ttl, now: time.Now}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a grant for accessID and returns the refresh token the
// client must present to rotate it.
func (m *Manager) Generate(ctx context.Context, accessID string, userID int64) (string, error) {
	switch {
	case strings.TrimSpace(accessID) == "":
		return "", errors.New("session: access id is required")
	case userID <= 0:
		return "", errors.New("session: user id is required")
	}
	return m.open(ctx, accessID, userID)
}

// Rotate redeems the refresh token bound to oldAccessID and opens a new grant.
// The old grant is removed so each refresh token works once.
func (m *Manager) Rotate(ctx context.Context, oldAccessID string, userID int64, refresh string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(refresh) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	key := m.kv.AccessSessionKey(oldAccessID)
	g, err := m.lookup(ctx, key)
	if err != nil {
		return "", "", err
	}
	if g.UserID != userID || subtle.ConstantTimeCompare([]byte(g.Digest), []byte(digest(refresh))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	nextID := NewAccessID()
	token, err := m.open(ctx, nextID, userID)
	if err != nil {
		return "", "", err
	}
	if err := m.kv.Del(ctx, key); err != nil {
		return "", "", fmt.Errorf("session: drop rotated grant: %w", err)
	}
	return nextID, token, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errors.New("session: access id is required")
	}
	return m.kv.Del(ctx, m.kv.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has an open grant.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errors.New("session: access id is required")
	}
	_, err := m.kv.Get(ctx, m.kv.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (m *Manager) open(ctx context.Context, accessID string, userID int64) (string, error) {
	buf := make([]byte, tokenEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: refresh token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	raw, err := json.Marshal(grant{UserID: userID, Digest: digest(token), IssuedAt: m.now().UTC()})
	if err != nil {
		return "", err
	}
	if err := m.kv.Set(ctx, m.kv.AccessSessionKey(accessID), string(raw), m.ttl); err != nil {
		return "", fmt.Errorf("session: store grant: %w", err)
	}
	return token, nil
}

func (m *Manager) lookup(ctx context.Context, key string) (grant, error) {
	raw, err := m.kv.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return grant{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return grant{}, err
	}
	var g grant
	if json.Unmarshal([]byte(raw), &g) != nil {
		return grant{}, ErrInvalidRefreshToken
	}
	return g, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
