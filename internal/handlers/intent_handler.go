package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blossomfi/blossom-api/internal/middleware"
	"github.com/blossomfi/blossom-api/internal/services"
)

// IntentHandler serves the conversational intent endpoints.
type IntentHandler struct {
	intents *services.IntentService
}

// NewIntentHandler creates the intent handler.
func NewIntentHandler(intents *services.IntentService) *IntentHandler {
	return &IntentHandler{intents: intents}
}

type intentMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// Message handles POST /api/v1/intent/message. The conversation is keyed by
// the authenticated wallet.
func (h *IntentHandler) Message(c *gin.Context) {
	wallet, ok := middleware.GetWalletAddress(c)
	if !ok {
		sendError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "wallet authentication is required")
		return
	}

	var req intentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	step, err := h.intents.Process(c.Request.Context(), wallet.Hex(), wallet, req.Message)
	if err != nil {
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, step)
}

// Reset handles POST /api/v1/intent/reset.
func (h *IntentHandler) Reset(c *gin.Context) {
	wallet, ok := middleware.GetWalletAddress(c)
	if !ok {
		sendError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "wallet authentication is required")
		return
	}

	if err := h.intents.Reset(c.Request.Context(), wallet.Hex()); err != nil {
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "conversation reset"})
}
