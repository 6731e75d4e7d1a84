// Package service holds the application services that sit between the
// HTTP handlers and the repositories: the credential service and the
// RabbitMQ event publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/backoffice-ledger/internal/config"
	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/model"
	"github.com/iliyamo/backoffice-ledger/internal/repository"
	"github.com/iliyamo/backoffice-ledger/internal/utils"
)

// UserStore is the user persistence the credential service needs.
type UserStore interface {
	Create(ctx context.Context, username, password, role string, cost int) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Session is what a successful login or refresh hands back.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Credentials authenticates users and issues and verifies their tokens.
type Credentials struct {
	users  UserStore
	tokens TokenStore
	cfg    config.AuthConfig
	log    *slog.Logger
}

// NewCredentials returns a credential service.
func NewCredentials(users UserStore, tokens TokenStore, cfg config.AuthConfig, log *slog.Logger) *Credentials {
	if log == nil {
		log = slog.Default()
	}
	return &Credentials{users: users, tokens: tokens, cfg: cfg, log: log}
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Credentials) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: username and password are required", ledger.ErrValidation)
	}
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: invalid credentials", ledger.ErrUnauthorized)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, fmt.Errorf("%w: invalid credentials", ledger.ErrUnauthorized)
	}
	return u, nil
}

// Login authenticates and opens a new session.
func (s *Credentials) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.log.InfoContext(ctx, "login rejected", slog.String("username", username), slog.Any("error", err))
		return Session{}, err
	}
	sess, err := s.issue(ctx, u)
	if err != nil {
		return Session{}, err
	}
	s.log.InfoContext(ctx, "login", slog.Uint64("user_id", u.ID), slog.String("role", u.Role))
	return sess, nil
}

// Refresh exchanges a refresh token for a new session. The old token is
// revoked in the same step the new one is stored.
func (s *Credentials) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, fmt.Errorf("%w: refresh_token is required", ledger.ErrValidation)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL())
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	userID, err := s.tokens.Rotate(ctx, utils.HashRefreshRaw(raw), utils.HashRefreshRaw(refresh.Raw), refresh.Exp)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid refresh token", ledger.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid refresh token", ledger.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	access, err := s.access(u)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// Logout revokes one refresh token.
func (s *Credentials) Logout(ctx context.Context, raw string) error {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: invalid refresh token", ledger.ErrUnauthorized)
		}
		return err
	}
	return s.tokens.RevokeByHash(ctx, hash)
}

// LogoutAll revokes every refresh token of a user.
func (s *Credentials) LogoutAll(ctx context.Context, userID uint64) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// Verify resolves an access token to the caller's identity.
func (s *Credentials) Verify(raw string) (model.Identity, error) {
	claims, err := utils.ParseAccessToken(s.cfg.JWTSecret, raw)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ledger.ErrUnauthorized, err)
	}
	if !model.ValidRole(claims.Role) {
		return model.Identity{}, fmt.Errorf("%w: unknown role %q", ledger.ErrUnauthorized, claims.Role)
	}
	return model.Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

// Register creates a user. An empty role means staff.
func (s *Credentials) Register(ctx context.Context, username, password, role string) (model.User, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = model.RoleStaff
	}
	switch {
	case username == "" || password == "":
		return model.User{}, fmt.Errorf("%w: username and password are required", ledger.ErrValidation)
	case len(password) < 6:
		return model.User{}, fmt.Errorf("%w: password must be at least 6 characters", ledger.ErrValidation)
	case len(password) > utils.MaxPasswordBytes:
		return model.User{}, fmt.Errorf("%w: password must be at most %d bytes", ledger.ErrValidation, utils.MaxPasswordBytes)
	case !model.ValidRole(role):
		return model.User{}, fmt.Errorf("%w: unknown role %q", ledger.ErrValidation, role)
	}
	id, err := s.users.Create(ctx, username, password, role, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	s.log.InfoContext(ctx, "user registered", slog.Uint64("user_id", id), slog.String("role", role))
	return s.users.GetByID(ctx, id)
}

// User loads one user.
func (s *Credentials) User(ctx context.Context, id uint64) (model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Users lists every user.
func (s *Credentials) Users(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *Credentials) access(u model.User) (utils.AccessToken, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Username, u.Role, s.cfg.AccessTTL())
	if err != nil {
		return utils.AccessToken{}, fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

func (s *Credentials) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := s.access(u)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL())
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}
