package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/service"
)

// AdminHandler exposes the administrative endpoints: user listing,
// activation toggling and usage statistics.  Routes are registered
// behind RequireRole("admin").
type AdminHandler struct {
	Auth  *service.AuthService
	Usage *service.UsageRecorder
	Log   *zap.Logger
}

func NewAdminHandler(auth *service.AuthService, usage *service.UsageRecorder, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Auth: auth, Usage: usage, Log: log}
}

// ListUsers returns every user, newest first.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	users, err := h.Auth.ListUsers(ctx)
	if err != nil {
		if errors.Is(err, service.ErrStorageUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		}
		h.Log.Error("list users failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
	}

	out := make([]echo.Map, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out, "count": len(out)})
}

// ToggleActive flips a user's is_active flag.  Deactivation locks the
// account out immediately: outstanding tokens stop resolving on their
// next use.
func (h *AdminHandler) ToggleActive(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	active, err := h.Auth.ToggleActive(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, service.ErrStorageUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		default:
			h.Log.Error("toggle active failed", zap.Uint64("user_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "toggle active failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "is_active": active})
}

// UsageStats aggregates recorded usage per endpoint over the trailing
// since_days window (default 7).
func (h *AdminHandler) UsageStats(c echo.Context) error {
	sinceDays := 7
	if s := c.QueryParam("since_days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 365 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "since_days must be 1..365"})
		}
		sinceDays = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	stats, err := h.Usage.StatsSince(ctx, sinceDays)
	if err != nil {
		if errors.Is(err, service.ErrStorageUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		}
		h.Log.Error("usage stats failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "usage stats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"since_days":   sinceDays,
		"generated_at": time.Now().UTC(),
		"endpoints":    stats,
	})
}
