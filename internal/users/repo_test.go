package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/dbtest"
)

func TestRepositoryCreateAndLookup(t *testing.T) {
	conn := dbtest.Open(t).DB()
	repo := NewRepository(conn)
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{Name: " ada ", Email: " Ada@Example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	require.Equal(t, "ada", created.Name)
	require.Equal(t, "ada@example.com", created.Email)
	require.True(t, created.IsActive)

	byEmail, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	byName, err := repo.FindByIdentifier(ctx, "ada")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)

	byIdentifierEmail, err := repo.FindByIdentifier(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byIdentifierEmail.ID)

	_, err = repo.FindByName(ctx, "grace")
	require.Error(t, err)
}

func TestRepositoryUpdateLastLogin(t *testing.T) {
	conn := dbtest.Open(t).DB()
	repo := NewRepository(conn)
	ctx := context.Background()
	user := dbtest.SeedUser(t, conn, "ada", "ada@example.com")

	at := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	require.True(t, reloaded.LastLoginAt.Equal(at))
	require.Nil(t, FromModel(nil))
	require.Equal(t, "ada", FromModel(reloaded).Name)
}
