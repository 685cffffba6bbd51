package auth

import (
	"context"
	"testing"
	"time"

	"github.com/gatherly/gatherly/internal/storage"
	memorystorage "github.com/gatherly/gatherly/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func newService() *Service {
	return New(Config{Secret: "test-secret"}, memorystorage.New())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newService()
	ctx := context.Background()

	u, err := s.Register(ctx, "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.NotEqual(t, "hunter2", u.PasswordHash)

	_, err = s.Register(ctx, "alice", "alice@example.com", "hunter2")
	require.ErrorIs(t, err, storage.ErrDuplicateEmail)

	_, err = s.Register(ctx, "", "x@example.com", "pw")
	require.ErrorIs(t, err, storage.ErrEmptyField)

	token, logged, err := s.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, u.ID, logged.ID)
	require.NotEmpty(t, token)

	userID, err := s.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, u.ID, userID)
}

func TestLoginFailures(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)

	_, _, err = s.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = s.Login(ctx, "nobody@example.com", "hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyTokenFailures(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.VerifyToken("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Register(ctx, "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)
	token, _, err := s.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)

	other := New(Config{Secret: "other-secret"}, memorystorage.New())
	_, err = other.VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := New(Config{Secret: "test-secret", TokenTTL: -time.Minute}, s.storage)
	token, _, err = expired.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	_, err = expired.VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	_, ok := UserID(ctx)
	require.False(t, ok)

	ctx = WithUserID(ctx, "u1")
	id, ok := UserID(ctx)
	require.True(t, ok)
	require.Equal(t, "u1", id)
}
