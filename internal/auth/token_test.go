package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/book-garden-api/internal/model"
)

func testTokenService(store RefreshTokenStore) *TokenService {
	return NewTokenService("test-secret", 15, 7, store)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := testTokenService(newFakeTokenStore())
	u := &model.User{ID: 42, Nickname: "fern"}

	token, exp, err := svc.IssueAccess(u)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry not in the future: %v", exp)
	}

	claims, err := svc.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.UserID != 42 || claims.Nickname != "fern" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.TokenType != TypeAccess {
		t.Fatalf("token type = %d, want access", claims.TokenType)
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := testTokenService(store)
	u := &model.User{ID: 1, Nickname: "a"}

	pair, err := svc.IssuePair(context.Background(), u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := svc.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token passed as access, err = %v", err)
	}
	// And the other direction.
	if _, err := svc.VerifyRefresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token passed as refresh, err = %v", err)
	}
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	u := &model.User{ID: 7, Nickname: "b"}
	token, _, err := testTokenService(newFakeTokenStore()).IssueAccess(u)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	other := NewTokenService("different-secret", 15, 7, newFakeTokenStore())
	if _, err := other.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong-secret token verified, err = %v", err)
	}
}

func TestAccessTokenExpiryBoundary(t *testing.T) {
	svc := testTokenService(newFakeTokenStore())
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	token, exp, err := svc.IssueAccess(&model.User{ID: 3, Nickname: "c"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// One second before expiry the token is still good.
	svc.now = func() time.Time { return exp.Add(-time.Second) }
	if _, err := svc.VerifyAccess(token); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}

	// Past expiry it fails with the expiry sentinel, not a generic error.
	svc.now = func() time.Time { return exp.Add(time.Second) }
	if _, err := svc.VerifyAccess(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("want ErrExpiredToken, got %v", err)
	}
}

func TestIssuePairSupersedesPreviousSession(t *testing.T) {
	store := newFakeTokenStore()
	svc := testTokenService(store)
	u := &model.User{ID: 5, Nickname: "d"}
	ctx := context.Background()

	first, err := svc.IssuePair(ctx, u)
	if err != nil {
		t.Fatalf("first IssuePair: %v", err)
	}
	second, err := svc.IssuePair(ctx, u)
	if err != nil {
		t.Fatalf("second IssuePair: %v", err)
	}
	if n := store.count(u.ID); n != 1 {
		t.Fatalf("stored sessions = %d, want 1", n)
	}
	if _, err := svc.VerifyRefresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("superseded token still verifies, err = %v", err)
	}
	if _, err := svc.VerifyRefresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("current token rejected: %v", err)
	}
}

func TestVerifyRefreshExpiredRowIsReaped(t *testing.T) {
	store := newFakeTokenStore()
	svc := testTokenService(store)
	u := &model.User{ID: 9, Nickname: "e"}
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	svc.now = func() time.Time { return pair.RefreshExpiresAt.Add(time.Minute) }
	if _, err := svc.VerifyRefresh(ctx, pair.RefreshToken); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("want ErrExpiredToken, got %v", err)
	}
	if n := store.count(u.ID); n != 0 {
		t.Fatalf("expired row not reaped, %d rows remain", n)
	}
}

func TestRevokeKillsActiveSession(t *testing.T) {
	store := newFakeTokenStore()
	svc := testTokenService(store)
	u := &model.User{ID: 11, Nickname: "f"}
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if err := svc.Revoke(ctx, u.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.VerifyRefresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked token still verifies, err = %v", err)
	}
	// Revoking again is a no-op, not an error.
	if err := svc.Revoke(ctx, u.ID); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
}

func TestVerifyAccessGarbageInput(t *testing.T) {
	svc := testTokenService(newFakeTokenStore())
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.VerifyAccess(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("VerifyAccess(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}
