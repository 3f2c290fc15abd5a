package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/book-garden-api/internal/model"
	"github.com/iliyamo/book-garden-api/internal/utils"
)

// Token type discriminator carried in the "type" claim.  The values are
// part of the wire format and must not change.
const (
	TypeAccess  = 0
	TypeRefresh = 1
)

// Claims is the payload carried by every signed token.
type Claims struct {
	UserID    uint64 `json:"user_id"`
	Nickname  string `json:"nickname"`
	TokenType int    `json:"type"` // 0 = access, 1 = refresh
	jwt.RegisteredClaims
}

// TokenPair bundles a freshly issued access/refresh pair with the expiry
// of each part.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService mints and verifies HS256-signed typed tokens and enforces
// the single-active-session invariant: issuing a pair replaces whatever
// refresh token row the user had before, so the superseded token fails
// verification even though its signature is still valid.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshTokenStore
	now        func() time.Time
}

// NewTokenService builds a TokenService.  TTLs are expressed the way the
// configuration carries them: minutes for access tokens, days for refresh
// tokens.
func NewTokenService(secret string, accessTTLMin, refreshTTLDays int, store RefreshTokenStore) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessTTLMin) * time.Minute,
		refreshTTL: time.Duration(refreshTTLDays) * 24 * time.Hour,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *TokenService) sign(u *model.User, ttl time.Duration, tokenType int) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID:    u.ID,
		Nickname:  u.Nickname,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueAccess mints a stateless access token for the user.  Nothing is
// persisted; verification relies on the signature and expiry alone.
func (s *TokenService) IssueAccess(u *model.User) (string, time.Time, error) {
	return s.sign(u, s.accessTTL, TypeAccess)
}

// IssuePair mints an access/refresh pair and persists the refresh half.
// All previously stored refresh tokens for the user are deleted first, so
// at most one session per user is ever live.
func (s *TokenService) IssuePair(ctx context.Context, u *model.User) (TokenPair, error) {
	access, accessExp, err := s.IssueAccess(u)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.sign(u, s.refreshTTL, TypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Replace(ctx, u.ID, utils.HashToken(refresh), refreshExp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return s.secret, nil
}

// VerifyAccess checks an access token's signature, type and expiry.  It
// never touches storage.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token's signature and type, then requires
// a matching stored row for (user_id, token hash).  A missing row means
// the token was superseded, revoked, or never issued.  An expired stored
// row is deleted as housekeeping before the expiry error is returned; the
// stored expiry, not the signed claim, is authoritative so that logout and
// account deletion revoke immediately.
func (s *TokenService) VerifyRefresh(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	// Expiry is judged against the stored row below, so an expired
	// signature claim must still reach the row lookup for lazy reaping.
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrInvalidToken
	}
	hash := utils.HashToken(token)
	row, err := s.store.Find(ctx, claims.UserID, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if s.now().After(row.ExpiresAt) {
		_ = s.store.Delete(ctx, claims.UserID, hash)
		return nil, ErrExpiredToken
	}
	return claims, nil
}

// Revoke deletes every stored refresh token for the user, terminating the
// active session.  Deleting when no row exists is not an error.
func (s *TokenService) Revoke(ctx context.Context, userID uint64) error {
	return s.store.DeleteByUser(ctx, userID)
}
