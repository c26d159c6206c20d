// Package httpapi exposes the call engine over HTTP and websockets.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"webconferencing/internal/auth"
	"webconferencing/internal/calls"
	"webconferencing/internal/providers"
	"webconferencing/internal/rbac"
	"webconferencing/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call the engine, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     *calls.Engine
	Providers *providers.Registry
	WebRTC    *providers.WebRTC
	LiveKit   *providers.LiveKit

	// AllowLogin enables token issuance without credentials. Never set in production.
	AllowLogin bool
	// RoleOf resolves the role put in refreshed tokens. Defaults to user.
	RoleOf func(userID string) string
	// CheckOrigin validates websocket origins. Nil keeps the same-origin check.
	CheckOrigin func(r *http.Request) bool

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// writeError maps engine and provider errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, calls.ErrArgument),
		errors.Is(err, providers.ErrInvalidConfiguration),
		errors.Is(err, providers.ErrInvalidIM):
		status = http.StatusBadRequest
	case errors.Is(err, calls.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, calls.ErrNotFound), errors.Is(err, providers.ErrUnknownProvider):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": msg})
}

// callerID returns the authenticated user id. RequireAccessToken guarantees one on /v1.
func callerID(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login issues a JWT token pair for any user id. Only registered outside production.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || !h.AllowLogin {
		notFound(c, "login disabled")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if !calls.ValidID(req.UserID) {
		badRequest(c, "user_id required")
		return
	}
	if req.Role == "" {
		req.Role = rbac.RoleUser
	}
	if !rbac.Known(req.Role) {
		badRequest(c, "unknown role")
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), req.UserID, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Refresh exchanges a refresh token for a new pair.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		notFound(c, "auth disabled")
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		badRequest(c, "refresh_token required")
		return
	}
	roleOf := h.RoleOf
	if roleOf == nil {
		roleOf = func(string) string { return rbac.RoleUser }
	}
	pair, err := h.Auth.Refresh(h.now(), req.RefreshToken, roleOf)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}
