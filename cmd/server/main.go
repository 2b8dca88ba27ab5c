package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jamai-backend-go/internal/api"
	"jamai-backend-go/internal/cache"
	"jamai-backend-go/internal/config"
	"jamai-backend-go/internal/core"
	"jamai-backend-go/internal/db"
	"jamai-backend-go/internal/messagequeue"
	"jamai-backend-go/internal/middleware"
	"jamai-backend-go/internal/payments"
	"jamai-backend-go/internal/plans"
)

func newLogger() (*zap.Logger, error) {
	if strings.ToLower(os.Getenv("GIN_MODE")) == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// --- 1. Initialize Logger (Zap) ---
	zapLogger, err := newLogger()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.",
		zap.String("creditsResetPolicy", appConfig.CreditsResetPolicy))

	// --- 3. Plan catalog ---
	prices := plans.PriceIDs{
		Pro:        appConfig.StripeProPriceID,
		Teams:      appConfig.StripeTeamsPriceID,
		Enterprise: appConfig.StripeEnterprisePriceID,
	}
	catalog, err := plans.LoadCatalog(appConfig.PlanCatalogFile, prices)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load plan catalog", zap.String("file", appConfig.PlanCatalogFile), zap.Error(err))
	}
	if err := api.RegisterValidators(catalog); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to register request validators", zap.Error(err))
	}

	// --- 4. Initialize Firebase Admin SDK (includes Firestore and Auth clients) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirestore(initCtx, appConfig, zapLogger); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore and Firebase Admin SDK", zap.Error(err))
	}
	defer func() {
		if err := db.CloseFirestore(); err != nil {
			zapLogger.Warn("Failed to close Firestore client", zap.Error(err))
		}
	}()

	firestoreClient := db.GetFirestoreClient()
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firestoreClient == nil || firebaseAuthClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firebase clients are nil after initialization. Application cannot start.")
	}

	// --- 5. Processed webhook event markers ---
	var eventCache cache.Cache
	if appConfig.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.RedisConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.String("addr", appConfig.RedisAddr), zap.Error(err))
		}
		eventCache = redisCache
		zapLogger.Info("Redis connected for webhook idempotency", zap.String("addr", appConfig.RedisAddr))
	} else {
		eventCache = cache.NewMemoryCache()
		zapLogger.Warn("REDIS_ADDR not set; processed webhook events are kept in memory.")
	}
	defer eventCache.Close()

	// --- 6. Billing notifications ---
	var notifier core.Notifier
	if appConfig.AMQPURL != "" {
		rabbit, err := messagequeue.NewRabbitMQService(appConfig.AMQPURL)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbit.Close()
		notifier = messagequeue.NewQueueNotifier(rabbit, appConfig.BillingEventsQueue, zapLogger)
		zapLogger.Info("Billing notifications enabled", zap.String("queue", appConfig.BillingEventsQueue))
	} else {
		notifier = messagequeue.NewLogNotifier(zapLogger)
	}

	// --- 7. Initialize Repositories ---
	userRepo := db.NewFirestoreUserRepository(firestoreClient)
	subscriptionRepo := db.NewFirestoreSubscriptionRepository(firestoreClient)
	referralRepo := db.NewFirestoreReferralRepository(firestoreClient)
	redemptionRepo := db.NewFirestoreRedemptionRepository(firestoreClient)
	billingEventRepo := db.NewFirestoreBillingEventRepository(firestoreClient)

	// --- 8. Initialize Services ---
	userService := core.NewUserService(userRepo)
	referralService := core.NewReferralService(referralRepo, redemptionRepo, userRepo, notifier, zapLogger)
	subscriptionService := core.NewSubscriptionService(
		subscriptionRepo, userRepo, catalog, referralService, notifier, appConfig.CreditsResetPolicy, zapLogger,
	)
	billingService := core.NewBillingService(core.BillingDeps{
		Gateway:       payments.NewStripeGateway(appConfig.StripeSecretKey, appConfig.StripeWebhookSecret),
		Subscriptions: subscriptionService,
		Users:         userRepo,
		BillingEvents: billingEventRepo,
		Events:        cache.NewProcessedEvents(eventCache, appConfig.WebhookEventTTL),
		Catalog:       catalog,
	}, appConfig, zapLogger)
	usageService := core.NewUsageService(userRepo, catalog, zapLogger)
	zapLogger.Info("Core services initialized successfully.")

	// --- 9. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	// --- 10. Apply Global Middleware (Order is important) ---
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured. API might not be accessible from a web frontend.")
	}

	// --- 11. Setup API Routes ---
	api.SetupRoutes(router, zapLogger, firebaseAuthClient, api.Services{
		Users:     userService,
		Billing:   billingService,
		Referrals: referralService,
		Usage:     usageService,
	})

	// --- 12. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 13. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}
