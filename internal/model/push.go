package model

import "database/sql"

// PushSetting holds a user's notification preferences.  One row is
// provisioned per user at signup.  RemindAt is a time-of-day ("HH:MM");
// the periodic sweep publishes a reading reminder for users whose
// RemindAt matches the current minute and whose BookEnabled flag is set.
type PushSetting struct {
	UserID      uint64         // push_settings.user_id
	AppEnabled  bool           // push_settings.app_enabled
	BookEnabled bool           // push_settings.book_enabled
	RemindAt    sql.NullString // push_settings.remind_at ("HH:MM", null = no reminder)
}
