package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat-server/internal/core"
)

// OpsHandlers provides read-mostly operator endpoints over the hub.
type OpsHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewOpsHandlers creates a new ops handlers instance.
func NewOpsHandlers(hub *core.Hub, logger *zerolog.Logger) *OpsHandlers {
	return &OpsHandlers{
		hub: hub,
		log: logger,
	}
}

// AnnounceRequest represents the announce request body.
type AnnounceRequest struct {
	Text string `json:"text" binding:"required,min=1,max=1024"`
}

// Presence lists the connected users.
// GET /api/presence
func (h *OpsHandlers) Presence(c *gin.Context) {
	c.JSON(http.StatusOK, toUserResponses(h.hub.Online()))
}

// Servers lists every channel.
// GET /api/servers
func (h *OpsHandlers) Servers(c *gin.Context) {
	c.JSON(http.StatusOK, toServerResponses(h.hub.Channels()))
}

// ServerMembers lists the members of a channel.
// GET /api/servers/:id/members
func (h *OpsHandlers) ServerMembers(c *gin.Context) {
	members, err := h.hub.ChannelMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponses(members))
}

// ServerMessages returns the retained messages of a channel, oldest first.
// GET /api/servers/:id/messages
func (h *OpsHandlers) ServerMessages(c *gin.Context) {
	msgs, err := h.hub.ChannelLog(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponses(msgs))
}

// Announce broadcasts a system notice to a channel.
// POST /api/servers/:id/announce
func (h *OpsHandlers) Announce(c *gin.Context) {
	var req AnnounceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid announce request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	channelID := c.Param("id")
	if err := h.hub.Announce(c.Request.Context(), channelID, req.Text); err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info().Str("channel_id", channelID).Str("operator", c.GetString(ContextKeyOperator)).Msg("announcement sent")
	c.Status(http.StatusNoContent)
}

func (h *OpsHandlers) fail(c *gin.Context, err error) {
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "server not found"})
		return
	}
	h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("ops request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
