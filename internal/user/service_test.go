package user

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/todo-web/internal/storage"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := storage.Open("sqlite://"+filepath.Join(t.TempDir(), "users.db"), "silent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })
	require.NoError(t, storage.Migrate(db, &User{}))
	return NewServiceWithCost(NewRepository(db), bcrypt.MinCost)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Username: " testuser ",
		Email:    "test@example.com",
		Password: "testpassword",
	})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "testuser", u.Username)
	assert.NotEqual(t, "testpassword", u.HashedPassword)
	assert.True(t, u.IsActive)

	got, err := svc.Authenticate(ctx, "testuser", "testpassword")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "testuser", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "testpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterRequiresUsernameAndPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "  ", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "bob"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetMissingUser(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
