package auth

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wardrobe-backend/internal/cart"
	"github.com/angelmondragon/wardrobe-backend/internal/users"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/auth/session"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

var (
	testJWT      = config.JWTConfig{Secret: "auth-secret", Issuer: "wardrobe-test", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60}
	testPassword = config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
)

type stubSessions struct {
	sessions map[string]int64
	revoked  []string
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: map[string]int64{}}
}

func (s *stubSessions) Generate(_ context.Context, accessID string, userID int64) (string, error) {
	s.sessions[accessID] = userID
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(_ context.Context, oldAccessID string, userID int64, provided string) (string, string, error) {
	owner, ok := s.sessions[oldAccessID]
	if !ok || owner != userID || provided != "refresh-"+oldAccessID {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.sessions, oldAccessID)
	next := session.NewAccessID()
	s.sessions[next] = userID
	return next, "refresh-" + next, nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	delete(s.sessions, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

type stubMerger struct {
	calls  []string
	err    error
	result *cart.MergeResult
}

func (s *stubMerger) MergeGuestToken(_ context.Context, guestToken string, userID int64) (*cart.MergeResult, error) {
	s.calls = append(s.calls, guestToken)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &cart.MergeResult{}, nil
}

type authFixture struct {
	svc      Service
	repo     *users.Repository
	sessions *stubSessions
	merger   *stubMerger
	logs     *bytes.Buffer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	conn := dbtest.Open(t).DB()
	f := &authFixture{
		repo:     users.NewRepository(conn),
		sessions: newStubSessions(),
		merger:   &stubMerger{},
		logs:     &bytes.Buffer{},
	}
	svc, err := NewService(ServiceParams{
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: f.logs}),
		UserRepo:       f.repo,
		SessionManager: f.sessions,
		Carts:          f.merger,
		JWTConfig:      testJWT,
		PasswordConfig: testPassword,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *authFixture) register(t *testing.T, name, email string) *LoginResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), RegisterRequest{Name: name, Email: email, Password: "secret1"})
	require.NoError(t, err)
	return resp
}

func TestRegisterSignsIn(t *testing.T) {
	f := newAuthFixture(t)

	resp := f.register(t, "ada", "Ada@Example.com")
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "ada@example.com", resp.User.Email)
	require.NotNil(t, resp.User.LastLoginAt)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)
	require.Equal(t, "ada", claims.Name)
	require.Contains(t, f.sessions.sessions, claims.ID)
}

func TestRegisterRejectsDuplicatesAndShortPasswords(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ada", "ada@example.com")

	_, err := f.svc.Register(ctx, RegisterRequest{Name: "other", Email: "ADA@example.com", Password: "secret1"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, "User with this email already exists.", pkgerrors.As(err).Message())

	_, err = f.svc.Register(ctx, RegisterRequest{Name: "ada", Email: "new@example.com", Password: "secret1"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, "This username is already taken.", pkgerrors.As(err).Message())

	_, err = f.svc.Register(ctx, RegisterRequest{Name: "grace", Email: "grace@example.com", Password: "12345"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestLoginUpgradesHashWhenCostsChange(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ada", "ada@example.com")
	before, err := f.repo.FindByName(ctx, "ada")
	require.NoError(t, err)

	stronger := testPassword
	stronger.ArgonTime = 2
	svc, err := NewService(ServiceParams{
		UserRepo:       f.repo,
		SessionManager: f.sessions,
		Carts:          f.merger,
		JWTConfig:      testJWT,
		PasswordConfig: stronger,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Identifier: "ada", Password: "secret1"})
	require.NoError(t, err)

	after, err := f.repo.FindByName(ctx, "ada")
	require.NoError(t, err)
	require.NotEqual(t, before.PasswordHash, after.PasswordHash)
	require.Contains(t, after.PasswordHash, "t=2")

	_, err = svc.Login(ctx, LoginRequest{Identifier: "ada", Password: "secret1"})
	require.NoError(t, err)
}

func TestLoginByEmailOrName(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ada", "ada@example.com")

	for _, identifier := range []string{"ada", "ADA@example.com"} {
		resp, err := f.svc.Login(ctx, LoginRequest{Identifier: identifier, Password: "secret1"})
		require.NoError(t, err, identifier)
		require.Equal(t, "ada", resp.User.Name)
	}

	for _, req := range []LoginRequest{
		{Identifier: "ada", Password: "wrong-pass"},
		{Identifier: "nobody", Password: "secret1"},
		{Identifier: " ", Password: "secret1"},
	} {
		_, err := f.svc.Login(ctx, req)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
		require.Equal(t, "invalid credentials", pkgerrors.As(err).Message())
	}
}

func TestLoginMergesGuestCart(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada", "ada@example.com")
	f.merger.result = &cart.MergeResult{GuestCartID: 3, UserCartID: 7, LinesMerged: 2, Merged: true}

	resp, err := f.svc.Login(context.Background(), LoginRequest{Identifier: "ada", Password: "secret1", GuestToken: "guest-token"})
	require.NoError(t, err)
	require.Equal(t, []string{"guest-token"}, f.merger.calls)
	require.NotNil(t, resp.Merge)
	require.Equal(t, int64(7), resp.Merge.UserCartID)
}

func TestLoginSucceedsWhenMergeFails(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada", "ada@example.com")
	f.merger.err = errors.New("db down")

	resp, err := f.svc.Login(context.Background(), LoginRequest{Identifier: "ada", Password: "secret1", GuestToken: "guest-token"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Nil(t, resp.Merge)

	logged := f.logs.String()
	require.Contains(t, logged, `"level":"error"`)
	require.Contains(t, logged, `"message":"cart.merge_failed"`)
	require.Contains(t, logged, `"error":"db down"`)
	require.Contains(t, logged, `"stack":`)
	require.Contains(t, logged, `"user_id":`)
}

func TestLoginWithoutGuestTokenSkipsMerge(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada", "ada@example.com")
	require.Empty(t, f.merger.calls)
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	resp := f.register(t, "ada", "ada@example.com")
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)

	pair, err := f.svc.Refresh(context.Background(), RefreshRequest{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, resp.RefreshToken, pair.RefreshToken)
	require.NotContains(t, f.sessions.sessions, claims.ID)

	next, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	require.NoError(t, err)
	require.Contains(t, f.sessions.sessions, next.ID)

	_, err = f.svc.Refresh(context.Background(), RefreshRequest{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	resp := f.register(t, "ada", "ada@example.com")
	accessID := session.NewAccessID()
	refresh, err := f.sessions.Generate(context.Background(), accessID, resp.User.ID)
	require.NoError(t, err)
	expired, err := pkgAuth.MintAccessToken(testJWT, time.Now().Add(-time.Hour), pkgAuth.AccessTokenPayload{UserID: resp.User.ID, JTI: accessID})
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), RefreshRequest{AccessToken: expired, RefreshToken: refresh})
	require.NoError(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)
	resp := f.register(t, "ada", "ada@example.com")
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), claims.ID))
	require.Equal(t, []string{claims.ID}, f.sessions.revoked)

	err = f.svc.Logout(context.Background(), "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
