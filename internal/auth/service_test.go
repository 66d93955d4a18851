package auth

import (
	"context"
	"testing"
	"time"

	"github.com/radboard/internal/model"
	"github.com/radboard/internal/repository"
	"github.com/radboard/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	byUsername map[string]*model.User
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if _, ok := f.byUsername[u.Username]; ok {
		return repository.ErrConstraint
	}
	f.byUsername[u.Username] = u
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func newService() (*Service, *fakeUsers) {
	users := &fakeUsers{byUsername: map[string]*model.User{}}
	return NewService(users, memory.New(), time.Hour), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "secret1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	token, logged, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, logged.ID)
}

func TestRegisterStoresAvatar(t *testing.T) {
	svc, users := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "secret1", " 🦊 ")
	require.NoError(t, err)
	assert.Equal(t, "🦊", u.Avatar)
	assert.Equal(t, "🦊", users.byUsername["alice"].Avatar)
	assert.Equal(t, "🦊", u.ToPublic().Avatar)

	// аватар опционален
	u, err = svc.Register(ctx, "bob", "secret1", "")
	require.NoError(t, err)
	assert.Empty(t, u.Avatar)

	// но не безразмерен
	_, err = svc.Register(ctx, "carol", "secret1", "длинная строка вместо глифа")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret1", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "another1", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "secret1", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "alice", "short", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "bad name", "secret1", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret1", "")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// несуществующий пользователь даёт ту же ошибку
	_, _, err = svc.Login(ctx, "ghost", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	sessions := memory.New()
	users := &fakeUsers{byUsername: map[string]*model.User{}}
	svc := NewService(users, sessions, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret1", "")
	require.NoError(t, err)
	token, u, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	got, err := sessions.GetSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got)

	require.NoError(t, svc.Logout(ctx, token))
	got, err = sessions.GetSession(ctx, token)
	require.NoError(t, err)
	assert.Empty(t, got)

	// пустой и неизвестный токены — no-op
	assert.NoError(t, svc.Logout(ctx, ""))
	assert.NoError(t, svc.Logout(ctx, "unknown"))
}
