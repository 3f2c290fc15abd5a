package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each row is
// a live credential session for one user; the service keeps at most one row
// per user so a login on a second device supersedes the first.  The signed
// token itself is not stored, only its SHA-256 hash.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the token.
//	TokenHash – SHA-256 hex digest of the signed refresh JWT.
//	ExpiresAt – expiration timestamp of the token.
//	CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	TokenHash string    // refresh_tokens.token_hash
	ExpiresAt time.Time // refresh_tokens.expires_at
	CreatedAt time.Time // refresh_tokens.created_at
}
