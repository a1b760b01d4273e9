package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blossomfi/blossom-api/internal/services"
)

// SessionHandler serves capability session reads.
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Status handles GET /api/v1/sessions/:id/status.
func (h *SessionHandler) Status(c *gin.Context) {
	sessionID := c.Param("id")
	if len(strings.TrimPrefix(sessionID, "0x")) != 64 {
		sendError(c, http.StatusBadRequest, "BAD_REQUEST", "session id must be a 32-byte hex string")
		return
	}

	view, err := h.sessions.Status(c.Request.Context(), sessionID)
	if err != nil {
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
