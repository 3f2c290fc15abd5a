package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/model"
)

// GardenRepo persists gardens and their memberships.
type GardenRepo struct{ DB *sql.DB }

func NewGardenRepo(db *sql.DB) *GardenRepo { return &GardenRepo{DB: db} }

// Create inserts a garden and its leader membership in one transaction.
// The creating user becomes the leader.
func (r *GardenRepo) Create(ctx context.Context, g *model.Garden, leaderID uint64) (uint64, error) {
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
	res, err := tx.ExecContext(ctx,
		"INSERT INTO gardens (title, info, color) VALUES (?,?,?)", g.Title, g.Info, g.Color)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO garden_members (garden_id, user_id, is_leader) VALUES (?,?,1)",
		id, leaderID); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a garden, auth.ErrNotFound when absent.
func (r *GardenRepo) GetByID(ctx context.Context, id uint64) (model.Garden, error) {
	var g model.Garden
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,title,info,color,created_at FROM gardens WHERE id=? LIMIT 1",
		id).Scan(&g.ID, &g.Title, &g.Info, &g.Color, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Garden{}, auth.ErrNotFound
	}
	return g, err
}

// ListByUser returns every garden the user is a member of.
func (r *GardenRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Garden, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT g.id, g.title, g.info, g.color, g.created_at
		 FROM gardens g
		 JOIN garden_members gm ON gm.garden_id = g.id
		 WHERE gm.user_id = ?
		 ORDER BY g.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Garden
	for rows.Next() {
		var g model.Garden
		if err := rows.Scan(&g.ID, &g.Title, &g.Info, &g.Color, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MemberTarget is a garden member reachable for a push notification.
type MemberTarget struct {
	UserID   uint64
	FCMToken string
}

// MemberTokens returns the garden's members that have a device token,
// excluding the given user.  Used to fan a member-joined notification out
// to everyone already in the garden.
func (r *GardenRepo) MemberTokens(ctx context.Context, gardenID, excludeUserID uint64) ([]MemberTarget, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, u.fcm_token
		 FROM garden_members gm
		 JOIN users u ON u.id = gm.user_id
		 WHERE gm.garden_id = ? AND gm.user_id <> ? AND u.fcm_token IS NOT NULL`,
		gardenID, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MemberTarget
	for rows.Next() {
		var t MemberTarget
		if err := rows.Scan(&t.UserID, &t.FCMToken); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Join adds the user as a non-leader member.  auth.ErrNotFound when the
// garden does not exist, auth.ErrConflict when already a member.
func (r *GardenRepo) Join(ctx context.Context, gardenID, userID uint64) error {
	var exists uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM gardens WHERE id=? LIMIT 1", gardenID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}
	var member uint64
	err = r.DB.QueryRowContext(ctx,
		"SELECT id FROM garden_members WHERE garden_id=? AND user_id=? LIMIT 1",
		gardenID, userID).Scan(&member)
	if err == nil {
		return auth.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO garden_members (garden_id, user_id, is_leader) VALUES (?,?,0)",
		gardenID, userID)
	return err
}
