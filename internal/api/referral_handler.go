package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jamai-backend-go/internal/core"
	"jamai-backend-go/internal/models"
)

// ReferralHandler handles referral code endpoints.
type ReferralHandler struct {
	referralService core.ReferralService
	logger          *zap.Logger
}

// NewReferralHandler creates a new ReferralHandler.
func NewReferralHandler(rs core.ReferralService, logger *zap.Logger) *ReferralHandler {
	return &ReferralHandler{referralService: rs, logger: logger}
}

func (h *ReferralHandler) mapReferralErrorToStatus(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrReferralCodeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Invalid referral code"})
	case errors.Is(err, core.ErrSelfReferral):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Cannot use your own referral code"})
	case errors.Is(err, core.ErrAlreadyRedeemed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "You have already used a referral code"})
	case errors.Is(err, core.ErrMissingReferralInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required parameters", Details: err.Error()})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallback})
	}
}

// Generate handles POST /referral/generate.
func (h *ReferralHandler) Generate(c *gin.Context) {
	var req models.GenerateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing userId or userEmail", Details: err.Error()})
		return
	}

	result, err := h.referralService.Generate(c.Request.Context(), req.UserID, req.UserEmail)
	if err != nil {
		h.mapReferralErrorToStatus(c, err, "Failed to generate referral code")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Validate handles POST /referral/validate.
func (h *ReferralHandler) Validate(c *gin.Context) {
	var req models.ValidateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing referral code", Details: err.Error()})
		return
	}

	referral, err := h.referralService.Validate(c.Request.Context(), req.ReferralCode)
	if errors.Is(err, core.ErrReferralCodeNotFound) {
		c.JSON(http.StatusNotFound, ValidateReferralResponse{Valid: false, Error: "Invalid referral code"})
		return
	}
	if err != nil {
		h.mapReferralErrorToStatus(c, err, "Failed to validate referral code")
		return
	}
	c.JSON(http.StatusOK, ValidateReferralResponse{
		Valid:         true,
		ReferrerID:    referral.ReferrerID,
		ReferrerEmail: referral.ReferrerEmail,
	})
}

// Redeem handles POST /referral/redeem.
func (h *ReferralHandler) Redeem(c *gin.Context) {
	var req models.RedeemReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required parameters", Details: err.Error()})
		return
	}

	if _, err := h.referralService.Redeem(c.Request.Context(), req.ReferralCode, req.ReferredUserID, req.ReferredUserEmail); err != nil {
		h.mapReferralErrorToStatus(c, err, "Failed to redeem referral code")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Referral code redeemed. Credits will be awarded when you subscribe to a paid plan.",
	})
}
