package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/model"
)

// TokenRepo persists refresh sessions (single 'token_hash' column).  The
// single-active-session rule lives in Replace: the delete and the insert
// commit together.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Replace drops every stored refresh token for the user and inserts the
// new one in a single transaction.
func (r *TokenRepo) Replace(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()
	if _, err = tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, expiresAt); err != nil {
		return err
	}
	return nil
}

// Find returns the stored session matching (user_id, token_hash), or
// auth.ErrNotFound when the token was superseded, revoked or never issued.
func (r *TokenRepo) Find(ctx context.Context, userID uint64, tokenHash string) (model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token_hash,expires_at,created_at FROM refresh_tokens WHERE user_id=? AND token_hash=? LIMIT 1",
		userID, tokenHash).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, auth.ErrNotFound
	}
	return rt, err
}

// Delete removes a single stored session.  Used for lazy reaping of
// expired rows during refresh verification.
func (r *TokenRepo) Delete(ctx context.Context, userID uint64, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=? AND token_hash=?", userID, tokenHash)
	return err
}

// DeleteByUser removes every stored session of the user.  Deleting zero
// rows is fine; logout stays idempotent.
func (r *TokenRepo) DeleteByUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}
