package model

import (
	"database/sql"
	"time"
)

// User represents an application user record as stored in the `users`
// table.  A user is identified by exactly one of two channels: a unique
// email address, or a unique (SocialID, SocialType) pair for social
// logins.  The empty string is the sentinel for "no social identity".
//
// Fields:
//
//	ID             – primary key identifier of the user.
//	Nickname       – display name; randomly generated at signup when absent.
//	Email          – email address (unique among non-social accounts).
//	PasswordHash   – bcrypt hashed password.  Never serialized to clients.
//	FCMToken       – device push token; null when logged out.
//	SocialID       – social login identifier ('' when none).
//	SocialType     – social provider name ('' when none).
//	ProfileImage   – profile image reference.
//	ResetCode      – pending one-time password reset code; null when none.
//	ResetCodeExpiresAt – moment the pending reset code stops being valid.
//	CreatedAt      – timestamp of creation.
type User struct {
	ID                 uint64         // users.id
	Nickname           string         // users.nickname
	Email              string         // users.email
	PasswordHash       string         // users.password_hash
	FCMToken           sql.NullString // users.fcm_token
	SocialID           string         // users.social_id ('' = none)
	SocialType         string         // users.social_type ('' = none)
	ProfileImage       string         // users.profile_image
	ResetCode          sql.NullString // users.reset_code
	ResetCodeExpiresAt sql.NullTime   // users.reset_code_expires_at
	CreatedAt          time.Time      // users.created_at
}

// PublicProfile is the explicit client-facing projection of a User.  The
// password hash and reset code are excluded by construction: only the
// fields enumerated here ever leave the server.
type PublicProfile struct {
	ID           uint64    `json:"id"`
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email"`
	SocialType   string    `json:"social_type,omitempty"`
	ProfileImage string    `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile builds the client-facing projection of u.
func (u *User) Profile() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Nickname:     u.Nickname,
		Email:        u.Email,
		SocialType:   u.SocialType,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

// IsSocial reports whether the user signed up through a social provider.
func (u *User) IsSocial() bool { return u.SocialID != "" }
