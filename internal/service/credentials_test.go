package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/backoffice-ledger/internal/config"
	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/model"
	"github.com/iliyamo/backoffice-ledger/internal/repository"
	"github.com/iliyamo/backoffice-ledger/internal/utils"
)

type memUsers struct {
	byID map[uint64]model.User
	next uint64
}

func (m *memUsers) Create(_ context.Context, username, password, role string, cost int) (uint64, error) {
	for _, u := range m.byID {
		if u.Username == username {
			return 0, repository.ErrUsernameExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	m.next++
	m.byID[m.next] = model.User{ID: m.next, Username: username, PasswordHash: hash, Role: role}
	return m.next, nil
}
func (m *memUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}
func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}
func (m *memUsers) List(context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, nil
}

type memToken struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type memTokens map[string]*memToken

func (m memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	m[hash] = &memToken{userID: userID, exp: exp}
	return nil
}
func (m memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	t, ok := m[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, repository.ErrNotFound
	}
	return t.userID, nil
}
func (m memTokens) Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	userID, err := m.ValidateRefresh(ctx, oldHash)
	if err != nil {
		return 0, err
	}
	m[oldHash].revoked = true
	m[newHash] = &memToken{userID: userID, exp: exp}
	return userID, nil
}
func (m memTokens) RevokeByHash(_ context.Context, hash string) error {
	if t, ok := m[hash]; ok {
		t.revoked = true
	}
	return nil
}
func (m memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	for _, t := range m {
		if t.userID == userID {
			t.revoked = true
		}
	}
	return nil
}

func newCreds(t *testing.T) (*Credentials, memTokens) {
	t.Helper()
	users := &memUsers{byID: map[uint64]model.User{}}
	tokens := memTokens{}
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}
	c := NewCredentials(users, tokens, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.Register(context.Background(), "admin", "admin123", model.RoleSuperAdmin)
	require.NoError(t, err)
	return c, tokens
}

func TestLoginAndVerify(t *testing.T) {
	c, _ := newCreds(t)
	sess, err := c.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", sess.User.Username)
	assert.NotEmpty(t, sess.Refresh.Raw)

	id, err := c.Verify(sess.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{UserID: sess.User.ID, Username: "admin", Role: model.RoleSuperAdmin}, id)
}

func TestLoginRejects(t *testing.T) {
	c, _ := newCreds(t)
	tests := []struct {
		name, user, pass string
		kind             ledger.Kind
	}{
		{"wrong password", "admin", "nope", ledger.KindUnauthorized},
		{"unknown user", "ghost", "admin123", ledger.KindUnauthorized},
		{"empty", "", "", ledger.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Login(context.Background(), tt.user, tt.pass)
			assert.Equal(t, tt.kind, ledger.KindOf(err))
		})
	}
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	c, _ := newCreds(t)
	other, err := utils.NewAccessToken("other-secret", 1, "admin", model.RoleSuperAdmin, time.Minute)
	require.NoError(t, err)
	_, err = c.Verify(other.Token)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	badRole, err := utils.NewAccessToken("test-secret", 1, "admin", "owner", time.Minute)
	require.NoError(t, err)
	_, err = c.Verify(badRole.Token)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestRefreshRotates(t *testing.T) {
	c, _ := newCreds(t)
	ctx := context.Background()
	sess, err := c.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	next, err := c.Refresh(ctx, sess.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Refresh.Raw, next.Refresh.Raw)

	_, err = c.Refresh(ctx, sess.Refresh.Raw)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = c.Refresh(ctx, "  ")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestLogout(t *testing.T) {
	c, tokens := newCreds(t)
	ctx := context.Background()
	a, err := c.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	b, err := c.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	require.NoError(t, c.Logout(ctx, a.Refresh.Raw))
	assert.ErrorIs(t, c.Logout(ctx, a.Refresh.Raw), ledger.ErrUnauthorized)

	require.NoError(t, c.LogoutAll(ctx, b.User.ID))
	for _, tok := range tokens {
		assert.True(t, tok.revoked)
	}
}

func TestRegister(t *testing.T) {
	c, _ := newCreds(t)
	ctx := context.Background()

	u, err := c.Register(ctx, "clerk", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, u.Role)

	_, err = c.Register(ctx, "clerk", "secret1", "")
	assert.ErrorIs(t, err, repository.ErrUsernameExists)

	_, err = c.Register(ctx, "short", "12345", "")
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = c.Register(ctx, "owner", "secret1", "owner")
	assert.ErrorIs(t, err, ledger.ErrValidation)

	users, err := c.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
