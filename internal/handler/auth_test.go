package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/middleware"
	"github.com/iliyamo/book-garden-api/internal/model"
)

// Minimal in-memory stores behind the auth interfaces, enough to drive
// the HTTP surface end to end without a database.

type memUsers struct {
	nextID uint64
	byID   map[uint64]*model.User
}

func newMemUsers() *memUsers { return &memUsers{nextID: 1, byID: map[uint64]*model.User{}} }

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	if u, ok := m.byID[id]; ok {
		return *u, nil
	}
	return model.User{}, auth.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, auth.ErrNotFound
}

func (m *memUsers) GetBySocial(_ context.Context, id, typ string) (model.User, error) {
	for _, u := range m.byID {
		if id != "" && u.SocialID == id && u.SocialType == typ {
			return *u, nil
		}
	}
	return model.User{}, auth.ErrNotFound
}

func (m *memUsers) UpdateFCMToken(_ context.Context, id uint64, token *string) error {
	if u, ok := m.byID[id]; ok {
		if token == nil {
			u.FCMToken.Valid, u.FCMToken.String = false, ""
		} else {
			u.FCMToken.Valid, u.FCMToken.String = true, *token
		}
	}
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uint64, hash string) error {
	if u, ok := m.byID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uint64, nickname, image string) error {
	if u, ok := m.byID[id]; ok {
		u.Nickname, u.ProfileImage = nickname, image
	}
	return nil
}

func (m *memUsers) SetResetCode(_ context.Context, id uint64, code string, exp time.Time) error {
	if u, ok := m.byID[id]; ok {
		u.ResetCode.Valid, u.ResetCode.String = true, code
		u.ResetCodeExpiresAt.Valid, u.ResetCodeExpiresAt.Time = true, exp
	}
	return nil
}

func (m *memUsers) ClearResetCode(_ context.Context, id uint64, code string) error {
	if u, ok := m.byID[id]; ok && u.ResetCode.Valid && u.ResetCode.String == code {
		u.ResetCode.Valid, u.ResetCode.String = false, ""
		u.ResetCodeExpiresAt.Valid = false
	}
	return nil
}

type memTokens struct {
	rows map[uint64]model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[uint64]model.RefreshToken{}} }

func (m *memTokens) Replace(_ context.Context, userID uint64, hash string, exp time.Time) error {
	m.rows[userID] = model.RefreshToken{UserID: userID, TokenHash: hash, ExpiresAt: exp}
	return nil
}

func (m *memTokens) Find(_ context.Context, userID uint64, hash string) (model.RefreshToken, error) {
	if r, ok := m.rows[userID]; ok && r.TokenHash == hash {
		return r, nil
	}
	return model.RefreshToken{}, auth.ErrNotFound
}

func (m *memTokens) Delete(_ context.Context, userID uint64, hash string) error {
	if r, ok := m.rows[userID]; ok && r.TokenHash == hash {
		delete(m.rows, userID)
	}
	return nil
}

func (m *memTokens) DeleteByUser(_ context.Context, userID uint64) error {
	delete(m.rows, userID)
	return nil
}

type memAccounts struct{ users *memUsers }

func (m *memAccounts) CreateWithDefaults(_ context.Context, u *model.User, _ *model.Garden) (uint64, error) {
	cp := *u
	cp.ID = m.users.nextID
	m.users.nextID++
	m.users.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memAccounts) DeleteAccount(_ context.Context, userID uint64) ([]string, error) {
	delete(m.users.byID, userID)
	return nil, nil
}

type memMailer struct{ sent int }

func (m *memMailer) Send(context.Context, string, string, string) error {
	m.sent++
	return nil
}

type noopSched struct{}

func (noopSched) After(string, time.Duration, func()) {}

func newAuthServer(t *testing.T) *echo.Echo {
	t.Helper()
	users := newMemUsers()
	tokens := auth.NewTokenService("handler-secret", 15, 7, newMemTokens())
	svc := auth.NewService(users, &memAccounts{users: users}, tokens, &memMailer{}, noopSched{}, 5, bcrypt.MinCost, t.TempDir())

	h := NewAuthHandler(svc)
	e := echo.New()
	e.POST("/v1/auth", h.Signup)
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)
	e.POST("/v1/auth/logout", h.Logout, middleware.JWTAuth(tokens))
	e.GET("/v1/auth", h.Me, middleware.JWTAuth(tokens))
	return e
}

func postJSON(e *echo.Echo, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSignupEndpoint(t *testing.T) {
	e := newAuthServer(t)

	rec := postJSON(e, "/v1/auth", `{"email":"a@b.com","password":"pw123456"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		User struct {
			ID       uint64 `json:"id"`
			Nickname string `json:"nickname"`
		} `json:"user"`
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.User.ID == 0 || resp.User.Nickname == "" {
		t.Fatalf("incomplete user in response: %+v", resp.User)
	}
	if resp.Access.Token == "" || resp.Refresh.Token == "" {
		t.Fatal("signup response carries no tokens")
	}
	if strings.Contains(rec.Body.String(), "pw123456") {
		t.Fatal("password leaked into the response")
	}

	// Same email again conflicts.
	if rec := postJSON(e, "/v1/auth", `{"email":"a@b.com","password":"xx"}`, ""); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", rec.Code)
	}
	// Missing credentials are rejected before the service runs.
	if rec := postJSON(e, "/v1/auth", `{"email":"a@b.com"}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password status = %d, want 400", rec.Code)
	}
}

func TestLoginAndRefreshEndpoints(t *testing.T) {
	e := newAuthServer(t)
	postJSON(e, "/v1/auth", `{"email":"c@d.com","password":"pw123456"}`, "")

	if rec := postJSON(e, "/v1/auth/login", `{"email":"c@d.com","password":"wrong"}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong password status = %d, want 400", rec.Code)
	}
	if rec := postJSON(e, "/v1/auth/login", `{"email":"nobody@d.com","password":"pw"}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown email status = %d, want 400", rec.Code)
	}

	rec := postJSON(e, "/v1/auth/login", `{"email":"c@d.com","password":"pw123456"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Refresh struct{ Token string } `json:"refresh"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad login body: %v", err)
	}

	rec = postJSON(e, "/v1/auth/refresh", `{"refresh_token":"`+resp.Refresh.Token+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := postJSON(e, "/v1/auth/refresh", `{"refresh_token":"garbage"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage refresh status = %d, want 401", rec.Code)
	}
	if rec := postJSON(e, "/v1/auth/refresh", `{}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty refresh status = %d, want 400", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newAuthServer(t)
	rec := postJSON(e, "/v1/auth", `{"email":"e@f.com","password":"pw123456"}`, "")
	var resp struct {
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad signup body: %v", err)
	}

	if rec := postJSON(e, "/v1/auth/logout", `{}`, resp.Access.Token); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// The refresh session died with the logout; the access token is
	// stateless and keeps working until it expires.
	if rec := postJSON(e, "/v1/auth/refresh", `{"refresh_token":"`+resp.Refresh.Token+`"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("post-logout refresh status = %d, want 401", rec.Code)
	}
	// Logging out twice is fine.
	if rec := postJSON(e, "/v1/auth/logout", `{}`, resp.Access.Token); rec.Code != http.StatusOK {
		t.Fatalf("second logout status = %d", rec.Code)
	}
}

func TestMeRequiresBearer(t *testing.T) {
	e := newAuthServer(t)
	rec := postJSON(e, "/v1/auth", `{"email":"g@h.com","password":"pw123456"}`, "")
	var resp struct {
		Access struct{ Token string } `json:"access"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad signup body: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /me status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/auth", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Access.Token)
	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/me status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "g@h.com") {
		t.Fatalf("/me body = %s", w.Body.String())
	}
}
