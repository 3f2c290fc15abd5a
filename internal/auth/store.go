package auth

import (
	"context"
	"time"

	"github.com/iliyamo/book-garden-api/internal/model"
)

// The service talks to storage through the narrow interfaces below.  The
// MySQL implementations live in internal/repository; tests substitute an
// in-memory store.  Absence is reported with ErrNotFound, duplicate
// identities with ErrConflict — expected conditions travel as sentinel
// values, not as driver errors.

// UserStore reads and mutates user rows.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetBySocial(ctx context.Context, socialID, socialType string) (model.User, error)
	// UpdateFCMToken sets the device push token; a nil value clears it.
	UpdateFCMToken(ctx context.Context, id uint64, token *string) error
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	UpdateProfile(ctx context.Context, id uint64, nickname, profileImage string) error
	// SetResetCode stores a pending one-time code and its expiry.
	SetResetCode(ctx context.Context, id uint64, code string, expiresAt time.Time) error
	// ClearResetCode removes the pending code only when it still matches
	// the given value, so a stale clear job never wipes a newer code.
	ClearResetCode(ctx context.Context, id uint64, code string) error
}

// RefreshTokenStore persists refresh sessions, at most one per user.
type RefreshTokenStore interface {
	// Replace deletes all stored tokens for the user and inserts the new
	// one in a single transaction.
	Replace(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error
	Find(ctx context.Context, userID uint64, tokenHash string) (model.RefreshToken, error)
	Delete(ctx context.Context, userID uint64, tokenHash string) error
	// DeleteByUser removes every token for the user.  Removing zero rows
	// is not an error; logout is idempotent.
	DeleteByUser(ctx context.Context, userID uint64) error
}

// AccountStore covers the two multi-entity transactions of the lifecycle:
// signup provisioning and account deletion.
type AccountStore interface {
	// CreateWithDefaults inserts the user, a personal garden led by them
	// and a default push-settings row in one transaction, returning the
	// new user id.  ErrConflict when the email or social pair is taken.
	CreateWithDefaults(ctx context.Context, u *model.User, garden *model.Garden) (uint64, error)
	// DeleteAccount removes the user and everything hanging off them in
	// one transaction: refresh tokens, garden memberships (with leader
	// succession or sole-member garden deletion), books, memos, image
	// rows, push settings and finally the user row.  It returns the image
	// file names whose files should be removed from disk after commit.
	DeleteAccount(ctx context.Context, userID uint64) (imageFiles []string, err error)
}

// Mailer delivers out-of-band messages (reset codes).  Implementations
// must respect the context deadline; a failed send must leave no state
// behind.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Scheduler runs named delayed jobs.  Scheduling a name that already has a
// pending job replaces it, which is exactly the coalescing the reset-code
// expiry needs when a second reset request arrives before the first fires.
type Scheduler interface {
	After(name string, delay time.Duration, fn func())
}
