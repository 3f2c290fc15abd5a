package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/model"
)

// AuthHandler exposes the account lifecycle over HTTP.  It owns no logic
// of its own: it binds requests, calls the service and maps sentinel
// errors onto the status surface of the API.
type AuthHandler struct {
	Svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{Svc: svc}
}

// ----- DTOs -----

type signupReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Nickname   string `json:"nickname"`
	FCMToken   string `json:"fcm_token"`
	SocialID   string `json:"social_id"`
	SocialType string `json:"social_type"`
}
type loginReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FCMToken   string `json:"fcm_token"`
	SocialID   string `json:"social_id"`
	SocialType string `json:"social_type"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type emailReq struct {
	Email string `json:"email"`
}
type checkCodeReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type resetPasswordReq struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	Password string `json:"password"`
}
type updateProfileReq struct {
	Nickname     *string `json:"nickname"`
	ProfileImage *string `json:"profile_image"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.PublicProfile `json:"user"`
	Access  tokenPart           `json:"access"`
	Refresh tokenPart           `json:"refresh"`
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 10*time.Second)
}

// Signup: create user with default garden and push settings, auto-login.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.SocialID == "" {
		if req.Email == "" || req.Password == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
		}
	} else if req.SocialType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "social_type required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, pair, err := h.Svc.Signup(ctx, auth.SignupRequest{
		Email:      req.Email,
		Password:   req.Password,
		Nickname:   req.Nickname,
		FCMToken:   req.FCMToken,
		SocialID:   req.SocialID,
		SocialType: req.SocialType,
	})
	if err != nil {
		if errors.Is(err, auth.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "identity already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signup failed"})
	}
	return c.JSON(http.StatusCreated, authResp{
		User:    u.Profile(),
		Access:  tokenPart{Token: pair.AccessToken, Expires: pair.AccessExpiresAt},
		Refresh: tokenPart{Token: pair.RefreshToken, Expires: pair.RefreshExpiresAt},
	})
}

// Login: verify credentials, supersede any previous session, store the
// device push token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SocialID == "" && (req.Email == "" || req.Password == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, pair, err := h.Svc.Login(ctx, auth.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		FCMToken:   req.FCMToken,
		SocialID:   req.SocialID,
		SocialType: req.SocialType,
	})
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) || errors.Is(err, auth.ErrUnauthorized) {
			// Unknown identity and wrong password answer alike.
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		User:    u.Profile(),
		Access:  tokenPart{Token: pair.AccessToken, Expires: pair.AccessExpiresAt},
		Refresh: tokenPart{Token: pair.RefreshToken, Expires: pair.RefreshExpiresAt},
	})
}

// Refresh: exchange a refresh token for a new access token.  The stored
// refresh session is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	access, exp, err := h.Svc.RefreshAccess(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token expired"})
		case errors.Is(err, auth.ErrInvalidToken):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access, Expires: exp},
	})
}

// Logout: revoke the refresh session and clear the device push token.
// Safe to call twice; the second call finds nothing to revoke and still
// succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.Logout(ctx, uid); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no such user"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Delete: remove the account and everything it owns.
func (h *AuthHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.DeleteAccount(ctx, uid); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no such user"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "account deleted"})
}

// FindPassword: mail a one-time reset code.
func (h *AuthHandler) FindPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.RequestPasswordReset(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown email"})
		case errors.Is(err, auth.ErrDeliveryFailed):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "mail delivery failed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset request failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "mail sent"})
}

// CheckCode: verify a pending reset code.  Pure check, no state change.
func (h *AuthHandler) CheckCode(c echo.Context) error {
	var req checkCodeReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/code required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.CheckResetCode(ctx, req.Email, req.Code); err != nil {
		if errors.Is(err, auth.ErrNotFound) || errors.Is(err, auth.ErrUnauthorized) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "code mismatch"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "code verified"})
}

// ResetPassword: the recovery path; the mailed code is the credential.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Code == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/code/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.ResetPassword(ctx, req.Email, req.Code, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown email"})
		case errors.Is(err, auth.ErrUnauthorized):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "code mismatch"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password update failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// ChangePassword: the authenticated path.  Live sessions are revoked, so
// the client must log in again.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.ChangePassword(ctx, uid, req.Password); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no such user"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// Me: return the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	profile, err := h.Svc.Profile(ctx, uid)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no such user"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load profile failed"})
	}
	return c.JSON(http.StatusOK, profile)
}

// UpdateMe: update nickname and/or profile image; absent fields stay
// unchanged.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	profile, err := h.Svc.UpdateProfile(ctx, uid, auth.UpdateProfileRequest{
		Nickname:     req.Nickname,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no such user"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, profile)
}
