package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/access-control/internal/domain"
)

func newUser(username, email string, role domain.Role) *domain.User {
	return &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	}
}

// exerciseUserRepository runs the behavior every UserRepository must share.
func exerciseUserRepository(t *testing.T, repo UserRepository) {
	ctx := context.Background()

	alice := newUser("alice", "Alice@Example.com", domain.RoleAdmin)
	require.NoError(t, repo.Create(ctx, alice))
	require.NotEmpty(t, alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	bob := newUser("bob", "bob@example.com", domain.RoleStandard)
	require.NoError(t, repo.Create(ctx, bob))

	t.Run("duplicate username", func(t *testing.T) {
		err := repo.Create(ctx, newUser("alice", "other@example.com", domain.RoleStandard))
		assert.ErrorIs(t, err, ErrDuplicate)

		stored, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, stored.ID)
		assert.Equal(t, domain.RoleAdmin, stored.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, newUser("carol", "alice@example.com", domain.RoleStandard))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("lookup by id", func(t *testing.T) {
		stored, err := repo.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", stored.Username)

		_, err = repo.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("identifier matches username or email", func(t *testing.T) {
		byName, err := repo.GetByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)

		byEmail, err := repo.GetByIdentifier(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byEmail.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.GetByIdentifier(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list filters by role", func(t *testing.T) {
		all, err := repo.List(ctx, UserFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "alice", all[0].Username)

		role := domain.RoleStandard
		standard, err := repo.List(ctx, UserFilter{Role: &role})
		require.NoError(t, err)
		require.Len(t, standard, 1)
		assert.Equal(t, "bob", standard[0].Username)

		page, err := repo.List(ctx, UserFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "bob", page[0].Username)
	})

	t.Run("duplicate card uid", func(t *testing.T) {
		card := "04:A2:19:7F"
		erin := newUser("erin", "erin@example.com", domain.RoleStandard)
		erin.CardUID = &card
		require.NoError(t, repo.Create(ctx, erin))

		other := card
		frank := newUser("frank", "frank@example.com", domain.RoleStandard)
		frank.CardUID = &other
		assert.ErrorIs(t, repo.Create(ctx, frank), ErrDuplicate)

		_, err := repo.GetByUsername(ctx, "frank")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryUserRepository(t *testing.T) {
	exerciseUserRepository(t, NewMemoryUserRepository())
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := newUser("dave", "dave@example.com", domain.RoleStandard)
	require.NoError(t, repo.Create(ctx, user))

	fetched, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	fetched.Role = domain.RoleAdmin

	again, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStandard, again.Role)
}
