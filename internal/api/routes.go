package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jamai-backend-go/internal/core"
	"jamai-backend-go/internal/middleware"
)

// Services groups the core services the HTTP layer depends on.
type Services struct {
	Users     core.UserService
	Billing   core.BillingService
	Referrals core.ReferralService
	Usage     core.UsageService
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// It's expected that global middleware (RequestID, Logging, Recovery, CORS) are applied to the `router`
// instance *before* this function is called, typically in `main.go`.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	verifier middleware.TokenVerifier,
	services Services,
) {
	authMW := middleware.NewAuthMiddleware(verifier, logger)

	// --- Initialize Handlers ---
	userHandler := NewUserHandler(services.Users, logger)
	billingHandler := NewBillingHandler(services.Billing, logger)
	subscriptionHandler := NewSubscriptionHandler(services.Billing, logger)
	referralHandler := NewReferralHandler(services.Referrals, logger)
	creditsHandler := NewCreditsHandler(services.Usage, logger)

	apiV1 := router.Group("/api/v1")
	{
		usersGroup := apiV1.Group("/users")
		{
			usersGroup.GET("/me", authMW.VerifyToken(), userHandler.GetCurrentUserProfile)
		}

		// --- Billing Endpoints ---
		billingRouteGroup := apiV1.Group("/billing")
		{
			billingRouteGroup.POST("/create-checkout-session", authMW.VerifyToken(), billingHandler.CreateCheckoutSession)
			billingRouteGroup.POST("/create-portal-session", authMW.VerifyToken(), billingHandler.CreatePortalSession)

			// Stripe authenticates webhooks via signature, handled by the service.
			billingRouteGroup.POST("/webhooks/stripe", billingHandler.HandleStripeWebhook)
		}

		subscriptionGroup := apiV1.Group("/subscription")
		{
			subscriptionGroup.POST("/sync", authMW.VerifyToken(), subscriptionHandler.Sync)
			subscriptionGroup.POST("/sync-client", subscriptionHandler.SyncClient)
		}

		referralGroup := apiV1.Group("/referral")
		{
			referralGroup.POST("/generate", referralHandler.Generate)
			referralGroup.POST("/validate", referralHandler.Validate)
			referralGroup.POST("/redeem", referralHandler.Redeem)
		}

		creditsGroup := apiV1.Group("/credits", authMW.VerifyToken())
		{
			creditsGroup.GET("", creditsHandler.GetCredits)
			creditsGroup.POST("/deduct", creditsHandler.Deduct)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Jam AI billing backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
