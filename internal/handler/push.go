package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/repository"
)

// PushHandler exposes notification preferences.
type PushHandler struct {
	Push *repository.PushRepo
}

func NewPushHandler(p *repository.PushRepo) *PushHandler { return &PushHandler{Push: p} }

type pushSettingsResp struct {
	AppEnabled  bool    `json:"app_enabled"`
	BookEnabled bool    `json:"book_enabled"`
	RemindAt    *string `json:"remind_at"`
}

type updatePushReq struct {
	AppEnabled  *bool   `json:"app_enabled"`
	BookEnabled *bool   `json:"book_enabled"`
	RemindAt    *string `json:"remind_at"` // "HH:MM"
}

// Get returns the caller's push settings.
func (h *PushHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Push.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no settings"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	resp := pushSettingsResp{AppEnabled: p.AppEnabled, BookEnabled: p.BookEnabled}
	if p.RemindAt.Valid {
		resp.RemindAt = &p.RemindAt.String
	}
	return c.JSON(http.StatusOK, resp)
}

// Update applies the supplied preference fields; absent fields stay
// unchanged.
func (h *PushHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updatePushReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Push.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no settings"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load failed"})
	}
	if req.AppEnabled != nil {
		p.AppEnabled = *req.AppEnabled
	}
	if req.BookEnabled != nil {
		p.BookEnabled = *req.BookEnabled
	}
	if req.RemindAt != nil {
		if *req.RemindAt == "" {
			p.RemindAt = sql.NullString{}
		} else {
			p.RemindAt = sql.NullString{String: *req.RemindAt, Valid: true}
		}
	}
	if err := h.Push.Update(ctx, p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusOK)
}
