package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TokenRepo stores refresh tokens by their SHA-256 hash; raw tokens never
// reach the database.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const activeTokenQuery = `SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1`

type tokenRow struct {
	userID    uint64
	expiresAt time.Time
	revokedAt sql.NullTime
}

func (t tokenRow) active(now time.Time) bool {
	return !t.revokedAt.Valid && now.Before(t.expiresAt)
}

func scanToken(row *sql.Row) (tokenRow, error) {
	var t tokenRow
	err := row.Scan(&t.userID, &t.expiresAt, &t.revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tokenRow{}, ErrNotFound
	}
	return t, err
}

// StoreRefresh records a newly issued token.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC())
	return err
}

// ValidateRefresh returns the owning user id of an active token. Unknown,
// revoked and expired tokens all yield ErrNotFound.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	t, err := scanToken(r.DB.QueryRowContext(ctx, activeTokenQuery, tokenHash))
	if err != nil {
		return 0, err
	}
	if !t.active(time.Now().UTC()) {
		return 0, ErrNotFound
	}
	return t.userID, nil
}

// Rotate revokes the active token oldHash and stores newHash for the same
// user in one transaction, so a token can be exchanged at most once. It
// returns the owning user id.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := scanToken(tx.QueryRowContext(ctx, activeTokenQuery+" FOR UPDATE", oldHash))
	if err != nil {
		return 0, err
	}
	if !t.active(time.Now().UTC()) {
		return 0, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=?", oldHash); err != nil {
		return 0, fmt.Errorf("revoke: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		t.userID, newHash, exp.UTC()); err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return t.userID, nil
}

// RevokeByHash revokes one token. Already revoked tokens are left alone.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser revokes every active token of a user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}
