package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iliyamo/book-garden-api/internal/model"
	"github.com/iliyamo/book-garden-api/internal/utils"
)

// resetCodeLength matches the code format mailed to users: five random
// alphanumeric characters.
const resetCodeLength = 5

// Service orchestrates the account lifecycle.  It owns no storage itself;
// everything goes through the store interfaces so the multi-entity
// transactions stay inside the repository layer.
type Service struct {
	users      UserStore
	accounts   AccountStore
	tokens     *TokenService
	mailer     Mailer
	sched      Scheduler
	resetTTL   time.Duration
	bcryptCost int
	imagesDir  string
	now        func() time.Time
}

// NewService wires the account lifecycle service.  The scheduler handle is
// required: reset-code expiry jobs are registered on it.
func NewService(users UserStore, accounts AccountStore, tokens *TokenService, mailer Mailer, sched Scheduler, resetTTLMin, bcryptCost int, imagesDir string) *Service {
	return &Service{
		users:      users,
		accounts:   accounts,
		tokens:     tokens,
		mailer:     mailer,
		sched:      sched,
		resetTTL:   time.Duration(resetTTLMin) * time.Minute,
		bcryptCost: bcryptCost,
		imagesDir:  imagesDir,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Tokens exposes the token service for middleware and the refresh endpoint.
func (s *Service) Tokens() *TokenService { return s.tokens }

// SignupRequest carries the fields a signup may supply.  Nickname is
// optional; a random one is generated when absent.  SocialID/SocialType are
// the '' sentinel pair for plain email accounts.
type SignupRequest struct {
	Email      string
	Password   string
	Nickname   string
	FCMToken   string
	SocialID   string
	SocialType string
}

// Signup creates a user together with their personal garden and default
// push settings, then logs them in.  Duplicate identities return
// ErrConflict: the social pair is checked when a social id is present,
// the email otherwise.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*model.User, TokenPair, error) {
	const op = "auth.Signup"

	if req.SocialID != "" {
		if _, err := s.users.GetBySocial(ctx, req.SocialID, req.SocialType); err == nil {
			return nil, TokenPair{}, ErrConflict
		} else if !errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
			return nil, TokenPair{}, ErrConflict
		} else if !errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	hash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		nickname = utils.RandomNickname()
	}

	u := &model.User{
		Nickname:     nickname,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		SocialID:     req.SocialID,
		SocialType:   req.SocialType,
		ProfileImage: "image1",
	}
	if req.FCMToken != "" {
		u.FCMToken.String, u.FCMToken.Valid = req.FCMToken, true
	}
	garden := &model.Garden{
		Title: nickname + "'s garden",
		Info:  "personal garden",
		Color: "green",
	}
	id, err := s.accounts.CreateWithDefaults(ctx, u, garden)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, TokenPair{}, ErrConflict
		}
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	u.ID = id

	pair, err := s.tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, pair, nil
}

// LoginRequest locates a user by social pair when SocialID is set, by
// email otherwise.
type LoginRequest struct {
	Email      string
	Password   string
	FCMToken   string
	SocialID   string
	SocialType string
}

// Login authenticates a user and issues a fresh token pair, superseding
// any previous session.  The stored device push token is updated as a side
// effect.  Password verification is always the one-way bcrypt comparison.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*model.User, TokenPair, error) {
	const op = "auth.Login"

	var (
		u   model.User
		err error
	)
	if req.SocialID != "" {
		u, err = s.users.GetBySocial(ctx, req.SocialID, req.SocialType)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, TokenPair{}, ErrNotFound
			}
			return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		u, err = s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, TokenPair{}, ErrNotFound
			}
			return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}
		if !utils.VerifyPassword(u.PasswordHash, req.Password) {
			return nil, TokenPair{}, ErrUnauthorized
		}
	}

	pair, err := s.tokens.IssuePair(ctx, &u)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	// The stored device token always reflects the latest login: a login
	// without one clears whatever the previous device registered.
	var fcm *string
	if req.FCMToken != "" {
		fcm = &req.FCMToken
	}
	if err := s.users.UpdateFCMToken(ctx, u.ID, fcm); err != nil {
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	return &u, pair, nil
}

// RefreshAccess verifies a refresh token and mints a new access token
// without rotating the stored refresh session.
func (s *Service) RefreshAccess(ctx context.Context, refreshToken string) (string, time.Time, error) {
	const op = "auth.RefreshAccess"

	claims, err := s.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Subject vanished between issuance and refresh.
			return "", time.Time{}, ErrInvalidToken
		}
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	access, exp, err := s.tokens.IssueAccess(&u)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return access, exp, nil
}

// Logout revokes the user's refresh session and clears their device push
// token.  Calling it with no live session is not an error.
func (s *Service) Logout(ctx context.Context, userID uint64) error {
	const op = "auth.Logout"

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdateFCMToken(ctx, userID, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteAccount removes the user and all dependent state in one storage
// transaction, then best-effort deletes uploaded image files from disk.
// A missing file is not an error; the transaction has already committed.
func (s *Service) DeleteAccount(ctx context.Context, userID uint64) error {
	const op = "auth.DeleteAccount"

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	imageFiles, err := s.accounts.DeleteAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, name := range imageFiles {
		if name == "" {
			continue
		}
		if err := os.Remove(filepath.Join(s.imagesDir, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("auth: remove image %s: %v", name, err)
		}
	}
	return nil
}

// RequestPasswordReset mails a one-time code to the user and persists it
// with its expiry.  The mail goes out first: if delivery fails nothing is
// stored, so no unusable code is ever stranded.  A clear job is scheduled
// per user; a second request before the first job fires replaces both the
// code and the job.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "auth.RequestPasswordReset"

	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := utils.RandomCode(resetCodeLength)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(s.resetTTL.Minutes()))
	if err := s.mailer.Send(ctx, u.Email, "Book Garden password reset", body); err != nil {
		log.Printf("auth: reset mail to %s failed: %v", u.Email, err)
		return ErrDeliveryFailed
	}

	expiresAt := s.now().Add(s.resetTTL)
	if err := s.users.SetResetCode(ctx, u.ID, code, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	userID := u.ID
	s.sched.After(fmt.Sprintf("reset-code:%d", userID), s.resetTTL, func() {
		// The row is re-read by the conditional clear; a newer code issued
		// meanwhile stays untouched because this one no longer matches.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.users.ClearResetCode(ctx, userID, code); err != nil {
			log.Printf("auth: clear reset code for user %d: %v", userID, err)
		}
	})
	return nil
}

// CheckResetCode verifies a pending reset code.  It is a pure check: no
// state changes on success.  The stored expiry is consulted here as well,
// so a code outlives neither its window nor a process restart.
func (s *Service) CheckResetCode(ctx context.Context, email, code string) error {
	const op = "auth.CheckResetCode"

	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !s.resetCodeValid(&u, code) {
		return ErrUnauthorized
	}
	return nil
}

// ResetPassword is the recovery path: no bearer token, the mailed code is
// the credential.  The code is consumed, the password replaced, and any
// live refresh session revoked.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	const op = "auth.ResetPassword"

	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !s.resetCodeValid(&u, code) {
		return ErrUnauthorized
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.ClearResetCode(ctx, u.ID, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.Revoke(ctx, u.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ChangePassword is the authenticated path.  The refresh session is
// revoked so a stolen refresh token dies with the old password.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, newPassword string) error {
	const op = "auth.ChangePassword"

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Profile returns the client-facing projection of the user.
func (s *Service) Profile(ctx context.Context, userID uint64) (model.PublicProfile, error) {
	const op = "auth.Profile"

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.PublicProfile{}, ErrNotFound
		}
		return model.PublicProfile{}, fmt.Errorf("%s: %w", op, err)
	}
	return u.Profile(), nil
}

// UpdateProfileRequest uses pointers for optional fields: nil means
// unchanged.
type UpdateProfileRequest struct {
	Nickname     *string
	ProfileImage *string
}

// UpdateProfile applies the supplied profile fields and returns the
// updated projection.
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, req UpdateProfileRequest) (model.PublicProfile, error) {
	const op = "auth.UpdateProfile"

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.PublicProfile{}, ErrNotFound
		}
		return model.PublicProfile{}, fmt.Errorf("%s: %w", op, err)
	}
	nickname, image := u.Nickname, u.ProfileImage
	if req.Nickname != nil && strings.TrimSpace(*req.Nickname) != "" {
		nickname = strings.TrimSpace(*req.Nickname)
	}
	if req.ProfileImage != nil && *req.ProfileImage != "" {
		image = *req.ProfileImage
	}
	if err := s.users.UpdateProfile(ctx, userID, nickname, image); err != nil {
		return model.PublicProfile{}, fmt.Errorf("%s: %w", op, err)
	}
	u.Nickname, u.ProfileImage = nickname, image
	return u.Profile(), nil
}

// resetCodeValid reports whether the supplied code byte-exactly matches
// the stored pending code and its expiry has not passed.
func (s *Service) resetCodeValid(u *model.User, code string) bool {
	if !u.ResetCode.Valid || u.ResetCode.String == "" || code == "" {
		return false
	}
	if u.ResetCode.String != code {
		return false
	}
	if !u.ResetCodeExpiresAt.Valid || s.now().After(u.ResetCodeExpiresAt.Time) {
		return false
	}
	return true
}
