package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jamai-backend-go/internal/core"
	"jamai-backend-go/internal/middleware"
	"jamai-backend-go/internal/models"
)

// maxWebhookBody bounds the Stripe payload read into memory.
const maxWebhookBody = 1 << 16

// BillingHandler handles billing-related API endpoints.
type BillingHandler struct {
	billingService core.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, logger: logger}
}

// mapBillingErrorToStatus maps errors from core.BillingService to HTTP status codes and ErrorResponse.
func (h *BillingHandler) mapBillingErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrPlanNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Plan or Price not found", Details: err.Error()}
	case errors.Is(err, core.ErrStripeClient):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Payment provider error", Details: "Could not complete the operation with the payment provider."}
		h.logger.Error("Stripe client error", zap.Error(err))
	case errors.Is(err, core.ErrWebhookSignature):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Webhook signature verification failed"}
	case errors.Is(err, core.ErrWebhookProcessing):
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "Webhook handler failed"}
	case errors.Is(err, core.ErrUserStripeNotLinked):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "User not linked to payment provider", Details: err.Error()}
	case errors.Is(err, core.ErrUserNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "User profile not found"}
	case errors.Is(err, core.ErrMissingUserID), errors.Is(err, core.ErrMissingEmail):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Missing userEmail or userId", Details: err.Error()}
	default:
		h.logger.Error("Internal server error in BillingHandler", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// CreateCheckoutSession handles POST /billing/create-checkout-session
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	session, err := h.billingService.CreateCheckoutSession(c.Request.Context(), userID, c.GetString(middleware.ContextUserEmail), req.PlanID)
	if err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, CreateCheckoutSessionResponse{SessionID: session.ID, URL: session.URL})
}

// CreatePortalSession handles POST /billing/create-portal-session
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	session, err := h.billingService.CreatePortalSession(c.Request.Context(), userID)
	if err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, CreatePortalSessionResponse{URL: session.URL})
}

// HandleStripeWebhook handles POST /billing/webhooks/stripe
// This endpoint is public and does not require JWT authentication.
// Stripe authenticates webhooks using the 'Stripe-Signature' header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("Stripe webhook without Stripe-Signature header")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("Failed to read Stripe webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read webhook payload", Details: err.Error()})
		return
	}

	result, err := h.billingService.HandleStripeWebhook(c.Request.Context(), signature, payload)
	if err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookAckResponse{Received: true, Duplicate: result.Duplicate})
}
