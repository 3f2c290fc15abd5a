// Package repository implements the storage interfaces of internal/auth on
// top of MySQL.  Expected absence is reported as auth.ErrNotFound and
// duplicate identities as auth.ErrConflict so that callers never branch on
// driver errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/model"
)

const userColumns = "id,nickname,email,password_hash,fcm_token,social_id,social_type,profile_image,reset_code,reset_code_expires_at,created_at"

// UserRepo reads and mutates rows of the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Nickname, &u.Email, &u.PasswordHash, &u.FCMToken,
		&u.SocialID, &u.SocialType, &u.ProfileImage, &u.ResetCode, &u.ResetCodeExpiresAt, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, auth.ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetBySocial fetches a user by the (social_id, social_type) pair.
func (r *UserRepo) GetBySocial(ctx context.Context, socialID, socialType string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE social_id=? AND social_type=? LIMIT 1",
		socialID, socialType))
}

// UpdateFCMToken sets or clears the stored device push token.
func (r *UserRepo) UpdateFCMToken(ctx context.Context, id uint64, token *string) error {
	var v sql.NullString
	if token != nil {
		v = sql.NullString{String: *token, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET fcm_token=? WHERE id=?", v, id)
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", passwordHash, id)
	return err
}

// UpdateProfile replaces nickname and profile image.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, nickname, profileImage string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET nickname=?, profile_image=? WHERE id=?", nickname, profileImage, id)
	return err
}

// SetResetCode stores a pending one-time code and its expiry, overwriting
// any previous code.
func (r *UserRepo) SetResetCode(ctx context.Context, id uint64, code string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_code=?, reset_code_expires_at=? WHERE id=?", code, expiresAt, id)
	return err
}

// ClearResetCode removes the pending code only when it still matches the
// given value.  A clear job firing after a newer code was issued matches
// zero rows and is a no-op.
func (r *UserRepo) ClearResetCode(ctx context.Context, id uint64, code string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_code=NULL, reset_code_expires_at=NULL WHERE id=? AND reset_code=?",
		id, code)
	return err
}
