package httpapi

import (
	"net/http"

	"webconferencing/internal/calls"
	"webconferencing/internal/providers"

	"github.com/gin-gonic/gin"
)

type providerConfigRequest struct {
	Active *bool `json:"active"`
}

func (h Handlers) ListProviders(c *gin.Context) {
	cfgs, err := h.Providers.Configurations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": cfgs})
}

// SaveProvider toggles a provider on or off. Administrators only.
func (h Handlers) SaveProvider(c *gin.Context) {
	var req providerConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badRequest(c, "active required")
		return
	}
	cfg, err := h.Providers.SaveConfiguration(c.Request.Context(), providers.Configuration{
		Type:   c.Param("type"),
		Active: *req.Active,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) GetRTCConfiguration(c *gin.Context) {
	if h.WebRTC == nil {
		notFound(c, "webrtc provider not configured")
		return
	}
	cfg, err := h.WebRTC.RTCConfiguration(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) SaveRTCConfiguration(c *gin.Context) {
	if h.WebRTC == nil {
		notFound(c, "webrtc provider not configured")
		return
	}
	var cfg providers.RTCConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if err := h.WebRTC.SaveRTCConfiguration(c.Request.Context(), cfg); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// CallToken issues a LiveKit room token to a user taking part in the call.
func (h Handlers) CallToken(c *gin.Context) {
	if h.LiveKit == nil {
		notFound(c, "livekit provider not configured")
		return
	}
	ctx := c.Request.Context()
	if _, active, err := h.Providers.Active(ctx, providers.LiveKitType); err != nil {
		writeError(c, err)
		return
	} else if !active {
		notFound(c, "livekit provider disabled")
		return
	}

	call, err := h.Calls.GetCall(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if call == nil {
		notFound(c, "call not found")
		return
	}
	uid := callerID(c)
	p := call.Participant(uid, calls.ParticipantTypeUser)
	if p == nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a call participant"})
		return
	}

	tok, err := h.LiveKit.JoinToken(call.ID, uid, p.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}
