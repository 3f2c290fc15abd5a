package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-garden-api/internal/auth"
	"github.com/iliyamo/book-garden-api/internal/model"
	"github.com/iliyamo/book-garden-api/internal/queue"
	"github.com/iliyamo/book-garden-api/internal/repository"
)

// PushPublisher sends notification events to the broker.  Publishing is
// best-effort from the handler's point of view.
type PushPublisher interface {
	Publish(ctx context.Context, ev queue.PushEvent) error
}

// GardenStore is the slice of the garden repository the handler needs.
type GardenStore interface {
	Create(ctx context.Context, g *model.Garden, leaderID uint64) (uint64, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Garden, error)
	Join(ctx context.Context, gardenID, userID uint64) error
	MemberTokens(ctx context.Context, gardenID, excludeUserID uint64) ([]repository.MemberTarget, error)
}

// UserGetter resolves a user for notification copy.
type UserGetter interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// GardenHandler exposes the minimal garden surface: create, list mine,
// join.  The heavier garden semantics (leader succession, sole-member
// deletion) live in the account lifecycle, not here.
type GardenHandler struct {
	Gardens GardenStore
	Users   UserGetter
	Pub     PushPublisher
}

func NewGardenHandler(g GardenStore, u UserGetter, pub PushPublisher) *GardenHandler {
	return &GardenHandler{Gardens: g, Users: u, Pub: pub}
}

type createGardenReq struct {
	Title string `json:"title"`
	Info  string `json:"info"`
	Color string `json:"color"`
}

type gardenResp struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Info      string    `json:"info"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Create: the caller becomes the garden's leader.
func (h *GardenHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createGardenReq
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	g := &model.Garden{Title: req.Title, Info: req.Info, Color: req.Color}
	id, err := h.Gardens.Create(ctx, g, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create garden failed"})
	}
	return c.JSON(http.StatusCreated, gardenResp{ID: id, Title: g.Title, Info: g.Info, Color: g.Color})
}

// ListMine: gardens the caller belongs to.
func (h *GardenHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	gardens, err := h.Gardens.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	out := make([]gardenResp, 0, len(gardens))
	for _, g := range gardens {
		out = append(out, gardenResp{ID: g.ID, Title: g.Title, Info: g.Info, Color: g.Color, CreatedAt: g.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}

// Join: become a non-leader member.  Everyone already in the garden with
// a registered device gets a member-joined push.
func (h *GardenHandler) Join(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	gardenID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Gardens.Join(ctx, gardenID, uid); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "garden not found"})
		case errors.Is(err, auth.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already a member"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
		}
	}

	h.notifyMemberJoined(ctx, gardenID, uid)
	return c.JSON(http.StatusOK, echo.Map{"message": "joined"})
}

// notifyMemberJoined fans a member-joined event out to the garden's
// existing members.  A broker or lookup hiccup must not fail the join, so
// failures are only logged.
func (h *GardenHandler) notifyMemberJoined(ctx context.Context, gardenID, joinedUserID uint64) {
	u, err := h.Users.GetByID(ctx, joinedUserID)
	if err != nil {
		log.Printf("garden: load joined user %d: %v", joinedUserID, err)
		return
	}
	targets, err := h.Gardens.MemberTokens(ctx, gardenID, joinedUserID)
	if err != nil {
		log.Printf("garden: member tokens for garden %d: %v", gardenID, err)
		return
	}
	queuedAt := time.Now().UTC().Format(time.RFC3339)
	for _, m := range targets {
		ev := queue.PushEvent{
			UserID:   m.UserID,
			FCMToken: m.FCMToken,
			Kind:     queue.KindMemberJoined,
			Title:    "New garden member",
			Body:     u.Nickname + " joined the garden",
			QueuedAt: queuedAt,
		}
		if err := h.Pub.Publish(ctx, ev); err != nil {
			log.Printf("garden: publish member-joined to user %d failed: %v", m.UserID, err)
		}
	}
}
