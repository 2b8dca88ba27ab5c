package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jamai-backend-go/internal/core"
	"jamai-backend-go/internal/models"
)

// CreditsHandler handles credit balance endpoints for the authenticated user.
type CreditsHandler struct {
	usageService core.UsageService
	logger       *zap.Logger
}

// NewCreditsHandler creates a new CreditsHandler.
func NewCreditsHandler(us core.UsageService, logger *zap.Logger) *CreditsHandler {
	return &CreditsHandler{usageService: us, logger: logger}
}

func (h *CreditsHandler) mapUsageErrorToStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "Insufficient credits", Details: err.Error()})
	case errors.Is(err, core.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid amount", Details: err.Error()})
	case errors.Is(err, core.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "User profile not found"})
	default:
		h.logger.Error("Credits request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to process credits request"})
	}
}

// GetCredits handles GET /credits.
func (h *CreditsHandler) GetCredits(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	usage, err := h.usageService.GetUsage(c.Request.Context(), userID)
	if err != nil {
		h.mapUsageErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// Deduct handles POST /credits/deduct.
func (h *CreditsHandler) Deduct(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req models.DeductCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	usage, err := h.usageService.Deduct(c.Request.Context(), userID, req.Amount)
	if err != nil {
		h.mapUsageErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}
