package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jamai-backend-go/internal/core"
	"jamai-backend-go/internal/middleware"
	"jamai-backend-go/internal/models"
)

// SubscriptionHandler exposes the two subscription sync variants.
type SubscriptionHandler struct {
	billing *BillingHandler
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(bs core.BillingService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{billing: NewBillingHandler(bs, logger)}
}

// Sync handles POST /subscription/sync. The caller is identified by the
// bearer token and the result is written to their profile.
func (h *SubscriptionHandler) Sync(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	result, err := h.billing.billingService.SyncSubscription(c.Request.Context(), userID, c.GetString(middleware.ContextUserEmail))
	if err != nil {
		h.billing.mapBillingErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncClient handles POST /subscription/sync-client. Nothing is written; the
// response tells the client which profile fields to update.
func (h *SubscriptionHandler) SyncClient(c *gin.Context) {
	var req models.SyncSubscriptionClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing userEmail or userId", Details: err.Error()})
		return
	}

	result, err := h.billing.billingService.SyncSubscriptionClient(c.Request.Context(), req.UserID, req.UserEmail)
	if err != nil {
		h.billing.mapBillingErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
