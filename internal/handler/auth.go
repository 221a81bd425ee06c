package handler

import (
	"context"  // provides context with cancellation for service calls
	"errors"   // sentinel error matching
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts and response timestamps

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing
	"go.uber.org/zap"             // structured logging

	"github.com/reviewlens/reviewlens/internal/middleware" // principal helpers
	"github.com/reviewlens/reviewlens/internal/model"      // domain types
	"github.com/reviewlens/reviewlens/internal/repository" // conflict sentinels
	"github.com/reviewlens/reviewlens/internal/service"    // auth core
	"github.com/reviewlens/reviewlens/internal/utils"      // policy errors
)

// handlerTimeout bounds every service call made from a handler.
const handlerTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	Log  *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Identifier string `json:"identifier"` // username or email
	Password   string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type logoutReq struct {
	RefreshToken string `json:"refresh_token"` // optional
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
type authResp struct {
	User             userPart  `json:"user"`
	Access           tokenPart `json:"access"`
	Refresh          tokenPart `json:"refresh"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

// Register: create user, return its ID and the one-time-visible API key.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	u, apiKey, err := h.Auth.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return h.registrationError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user":    userPart{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role},
		"api_key": apiKey, // shown exactly once
	})
}

func (h *AuthHandler) registrationError(c echo.Context, err error) error {
	var policyErr *utils.PolicyError
	switch {
	case errors.Is(err, repository.ErrUsernameExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists", "field": "username"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists", "field": "email"})
	case errors.Is(err, service.ErrInvalidEmail):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email address"})
	case errors.As(err, &policyErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "weak password", "reason": policyErr.Reason})
	case errors.Is(err, service.ErrStorageUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
	default:
		h.Log.Error("register failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
}

// Login: verify identifier+password and return a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Identifier == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "identifier/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	u, pair, err := h.Auth.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.Is(err, service.ErrAccountInactive):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account inactive"})
		case errors.Is(err, service.ErrStorageUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		default:
			h.Log.Error("login failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
	}
	return c.JSON(http.StatusOK, authResp{
		User:             userPart{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role},
		Access:           tokenPart{Token: pair.Access.Token, Expires: pair.Access.Exp},
		Refresh:          tokenPart{Token: pair.Refresh.Token, Expires: pair.Refresh.Exp},
		ExpiresInSeconds: pair.ExpiresIn,
	})
}

// Refresh: exchange a refresh token for a new access token.  The refresh
// token is not rotated; it lives until its own expiry or revocation.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	access, err := h.Auth.RefreshAccess(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, service.ErrStorageUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		}
		// Expired, revoked, malformed, wrong type, vanished or inactive
		// user: the client only learns that the refresh was rejected.
		h.Log.Info("refresh rejected", zap.String("kind", err.Error()), zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout: revoke the presented access token, plus the refresh token when
// one is included in the body.  Requires authentication so the bearer
// token being revoked is the caller's own.
func (h *AuthHandler) Logout(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bearer token required"})
	}
	accessRaw := strings.TrimPrefix(auth, "Bearer ")

	var req logoutReq
	_ = c.Bind(&req) // body is optional

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, accessRaw, strings.TrimSpace(req.RefreshToken)); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenMalformed):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		case errors.Is(err, service.ErrStorageUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		default:
			h.Log.Error("logout failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: return the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, p)
}

// ChangePassword: verify the current password and store a new one.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password/new_password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		var policyErr *utils.PolicyError
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.As(err, &policyErr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "weak password", "reason": policyErr.Reason})
		case errors.Is(err, service.ErrStorageUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		default:
			h.Log.Error("change password failed", zap.Uint64("user_id", p.UserID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "change password failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// RegenerateAPIKey: issue a fresh API key, invalidating the old one.
func (h *AuthHandler) RegenerateAPIKey(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), handlerTimeout)
	defer cancel()

	key, err := h.Auth.RegenerateAPIKey(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, service.ErrStorageUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable"})
		}
		h.Log.Error("api key regeneration failed", zap.Uint64("user_id", p.UserID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "regenerate api key failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"api_key": key})
}

// userResponse builds the sanitized representation used by admin listings.
func userResponse(u model.User) echo.Map {
	resp := echo.Map{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}
	if !u.LastLogin.IsZero() {
		resp["last_login"] = u.LastLogin
	}
	return resp
}
