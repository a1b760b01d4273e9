package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/middleware"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// sendError writes a standard error response and logs it with the request's
// correlation ID.
func sendError(c *gin.Context, status int, code, message string) {
	logger.Warn("Request failed",
		zap.String("correlation_id", middleware.GetCorrelationID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("message", message),
	)
	c.JSON(status, ErrorResponse{Error: message, Code: code})
}

// sendInternalError hides internal detail from the client while logging it.
func sendInternalError(c *gin.Context, err error) {
	logger.Error("Internal error",
		zap.String("correlation_id", middleware.GetCorrelationID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
