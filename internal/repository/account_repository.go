package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/model"
)

// AccountRepo owns the two multi-entity transactions of the account
// lifecycle: signup provisioning and account deletion.  Both follow the
// same shape: BeginTx, deferred rollback-or-commit keyed on the named
// error, every statement through the tx.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// CreateWithDefaults inserts the user, their personal garden (led by them)
// and a default push-settings row.  All three commit or none do.  A
// duplicate email or social pair surfaces as auth.ErrConflict.
func (r *AccountRepo) CreateWithDefaults(ctx context.Context, u *model.User, garden *model.Garden) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	// Re-check identity uniqueness inside the transaction; the service
	// pre-check races with concurrent signups.
	var existing uint64
	if u.SocialID != "" {
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM users WHERE social_id=? AND social_type=? LIMIT 1",
			u.SocialID, u.SocialType).Scan(&existing)
	} else {
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM users WHERE email=? AND social_id='' LIMIT 1",
			u.Email).Scan(&existing)
	}
	if err == nil {
		err = auth.ErrConflict
		return 0, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	err = nil

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (nickname, email, password_hash, fcm_token, social_id, social_type, profile_image)
		 VALUES (?,?,?,?,?,?,?)`,
		u.Nickname, u.Email, u.PasswordHash, u.FCMToken, u.SocialID, u.SocialType, u.ProfileImage)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			err = auth.ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	userID := uint64(id)

	gres, err := tx.ExecContext(ctx,
		"INSERT INTO gardens (title, info, color) VALUES (?,?,?)",
		garden.Title, garden.Info, garden.Color)
	if err != nil {
		return 0, err
	}
	gid, err := gres.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO garden_members (garden_id, user_id, is_leader) VALUES (?,?,1)",
		gid, userID); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO push_settings (user_id, app_enabled, book_enabled) VALUES (?,1,0)",
		userID); err != nil {
		return 0, err
	}
	return userID, nil
}

// DeleteAccount removes the user and everything hanging off them inside
// one transaction, in dependency order: refresh session, garden
// memberships (with leader succession), memos and their images, books and
// their images, push settings, then the user row.  It returns the image
// file names collected along the way so the caller can remove the files
// after commit; file removal never belongs inside the transaction.
func (r *AccountRepo) DeleteAccount(ctx context.Context, userID uint64) (imageFiles []string, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID); err != nil {
		return nil, err
	}

	if err = r.leaveGardens(ctx, tx, userID); err != nil {
		return nil, err
	}

	// Memo images for memos written by the user or attached to their
	// books.  Collect file names first, then delete the rows.
	memoImages, err := collectStrings(ctx, tx,
		`SELECT mi.image_url FROM memo_images mi
		 JOIN memos m ON m.id = mi.memo_id
		 LEFT JOIN books b ON b.id = m.book_id
		 WHERE m.user_id = ? OR b.user_id = ?`, userID, userID)
	if err != nil {
		return nil, err
	}
	imageFiles = append(imageFiles, memoImages...)
	if _, err = tx.ExecContext(ctx,
		`DELETE mi FROM memo_images mi
		 JOIN memos m ON m.id = mi.memo_id
		 LEFT JOIN books b ON b.id = m.book_id
		 WHERE m.user_id = ? OR b.user_id = ?`, userID, userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE m FROM memos m
		 LEFT JOIN books b ON b.id = m.book_id
		 WHERE m.user_id = ? OR b.user_id = ?`, userID, userID); err != nil {
		return nil, err
	}

	bookImages, err := collectStrings(ctx, tx,
		`SELECT bi.image_url FROM book_images bi
		 JOIN books b ON b.id = bi.book_id
		 WHERE b.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	imageFiles = append(imageFiles, bookImages...)
	if _, err = tx.ExecContext(ctx,
		`DELETE bi FROM book_images bi
		 JOIN books b ON b.id = bi.book_id
		 WHERE b.user_id = ?`, userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM books WHERE user_id=?", userID); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM push_settings WHERE user_id=?", userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", userID); err != nil {
		return nil, err
	}
	return imageFiles, nil
}

// leaveGardens removes the user from every garden they belong to.  Led
// gardens with other members get a successor promoted; led gardens where
// the user was alone are deleted outright.
func (r *AccountRepo) leaveGardens(ctx context.Context, tx *sql.Tx, userID uint64) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT garden_id, is_leader FROM garden_members WHERE user_id=?", userID)
	if err != nil {
		return err
	}
	type membership struct {
		gardenID uint64
		leader   bool
	}
	var memberships []membership
	for rows.Next() {
		var m membership
		if err := rows.Scan(&m.gardenID, &m.leader); err != nil {
			rows.Close()
			return err
		}
		memberships = append(memberships, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range memberships {
		if !m.leader {
			continue
		}
		remaining, err := remainingMembers(ctx, tx, m.gardenID, userID)
		if err != nil {
			return err
		}
		heir := successor(remaining)
		if heir == nil {
			// Sole member: the garden goes with them.
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM garden_members WHERE garden_id=?", m.gardenID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM gardens WHERE id=?", m.gardenID); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE garden_members SET is_leader=1 WHERE id=?", heir.ID); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM garden_members WHERE user_id=?", userID)
	return err
}

// successor picks the membership to promote when the leader leaves: the
// earliest-joined remaining member, ties broken by row id (insertion
// order).  Nil when no members remain, in which case the garden is
// deleted instead.
func successor(members []model.GardenMember) *model.GardenMember {
	var heir *model.GardenMember
	for i := range members {
		m := &members[i]
		if heir == nil ||
			m.JoinedAt.Before(heir.JoinedAt) ||
			(m.JoinedAt.Equal(heir.JoinedAt) && m.ID < heir.ID) {
			heir = m
		}
	}
	return heir
}

// remainingMembers loads the garden's memberships excluding the leaving
// user.
func remainingMembers(ctx context.Context, tx *sql.Tx, gardenID, leavingUserID uint64) ([]model.GardenMember, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, garden_id, user_id, is_leader, joined_at
		 FROM garden_members WHERE garden_id=? AND user_id<>?`,
		gardenID, leavingUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GardenMember
	for rows.Next() {
		var m model.GardenMember
		if err := rows.Scan(&m.ID, &m.GardenID, &m.UserID, &m.IsLeader, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func collectStrings(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid && s.String != "" {
			out = append(out, s.String)
		}
	}
	return out, rows.Err()
}
