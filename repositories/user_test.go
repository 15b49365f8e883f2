package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"support-relay/domain"
	relayerrors "support-relay/errors"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_CreateUser_And_Get(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	// When creating an account
	id, err := repo.CreateUser("alice@example.com", "$argon2id$fake", domain.RoleSeeker)
	req.NoError(err)
	req.NotEmpty(id)

	// Then it can be looked up by email with the same id and hash
	user, err := repo.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("alice@example.com", user.Email)
	req.Equal("$argon2id$fake", user.PasswordHash)
	req.Equal(domain.RoleSeeker, user.Role)
	req.False(user.CreatedAt.IsZero())
}

func Test_CreateUser_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.CreateUser("bob@example.com", "hash1", domain.RoleResponder)
	req.NoError(err)

	_, err = repo.CreateUser("bob@example.com", "hash2", domain.RoleResponder)
	req.ErrorIs(err, relayerrors.ErrUserAlreadyExists)

	// The original account is untouched
	user, err := repo.GetUserByEmail("bob@example.com")
	req.NoError(err)
	req.Equal("hash1", user.PasswordHash)
}

func Test_GetUserByEmail_Unknown(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, badger.ErrKeyNotFound)
}
