package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blossomfi/blossom-api/internal/middleware"
	"github.com/blossomfi/blossom-api/internal/services"
)

// ExecutionHandler serves audit reads over the execution ledger.
type ExecutionHandler struct {
	ledger *services.LedgerService
}

// NewExecutionHandler creates the ledger read handler.
func NewExecutionHandler(ledger *services.LedgerService) *ExecutionHandler {
	return &ExecutionHandler{ledger: ledger}
}

// List handles GET /api/v1/executions for the authenticated wallet.
func (h *ExecutionHandler) List(c *gin.Context) {
	wallet, ok := middleware.GetWalletAddress(c)
	if !ok {
		sendError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "wallet authentication is required")
		return
	}

	limit := queryInt32(c, "limit", 0)
	offset := queryInt32(c, "offset", 0)

	executions, err := h.ledger.ListExecutions(c.Request.Context(), wallet.Hex(), limit, offset)
	if err != nil {
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

// Get handles GET /api/v1/executions/:id.
func (h *ExecutionHandler) Get(c *gin.Context) {
	wallet, ok := middleware.GetWalletAddress(c)
	if !ok {
		sendError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "wallet authentication is required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "BAD_REQUEST", "execution id must be a UUID")
		return
	}

	execution, err := h.ledger.GetExecution(c.Request.Context(), id)
	if errors.Is(err, services.ErrExecutionNotFound) {
		sendError(c, http.StatusNotFound, "NOT_FOUND", "execution not found")
		return
	}
	if err != nil {
		sendInternalError(c, err)
		return
	}

	// Ledger rows are wallet-scoped; reading someone else's row is a 404,
	// not a 403, so ids are not enumerable.
	if execution.FromAddress != wallet.Hex() {
		sendError(c, http.StatusNotFound, "NOT_FOUND", "execution not found")
		return
	}

	c.JSON(http.StatusOK, execution)
}

func queryInt32(c *gin.Context, key string, fallback int32) int32 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(n)
}
