package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/model"
)

// PushRepo persists notification preferences and answers the reminder
// sweep query.
type PushRepo struct{ DB *sql.DB }

func NewPushRepo(db *sql.DB) *PushRepo { return &PushRepo{DB: db} }

// Get fetches the user's push settings.
func (r *PushRepo) Get(ctx context.Context, userID uint64) (model.PushSetting, error) {
	var p model.PushSetting
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id,app_enabled,book_enabled,remind_at FROM push_settings WHERE user_id=? LIMIT 1",
		userID).Scan(&p.UserID, &p.AppEnabled, &p.BookEnabled, &p.RemindAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PushSetting{}, auth.ErrNotFound
	}
	return p, err
}

// Update replaces the user's push settings.
func (r *PushRepo) Update(ctx context.Context, p model.PushSetting) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE push_settings SET app_enabled=?, book_enabled=?, remind_at=? WHERE user_id=?",
		p.AppEnabled, p.BookEnabled, p.RemindAt, p.UserID)
	return err
}

// ReminderTarget is one user due for a reading-reminder push.
type ReminderTarget struct {
	UserID   uint64
	Nickname string
	FCMToken string
}

// DueReminders returns users who opted into book reminders, have a device
// token, and whose remind_at time-of-day equals hhmm ("15:04").
func (r *PushRepo) DueReminders(ctx context.Context, hhmm string) ([]ReminderTarget, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, u.nickname, u.fcm_token
		 FROM push_settings p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.book_enabled = 1 AND p.remind_at = ? AND u.fcm_token IS NOT NULL`, hhmm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReminderTarget
	for rows.Next() {
		var t ReminderTarget
		if err := rows.Scan(&t.UserID, &t.Nickname, &t.FCMToken); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
