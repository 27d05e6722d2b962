package main

import (
	"context"
	"time"

	listingcache "github.com/rentzentro/platform/internal/cache"
	"github.com/rentzentro/platform/internal/esign"
	"github.com/rentzentro/platform/internal/handlers"
	"github.com/rentzentro/platform/internal/notify"
	"github.com/rentzentro/platform/internal/storage"
	"github.com/rentzentro/platform/internal/stripeclient"
	"github.com/rentzentro/platform/pkg/auth"
	platformcache "github.com/rentzentro/platform/pkg/cache"
	"github.com/rentzentro/platform/pkg/config"
	"github.com/rentzentro/platform/pkg/database"
	"github.com/rentzentro/platform/pkg/logging"
	"github.com/rentzentro/platform/pkg/models"
	"github.com/rentzentro/platform/pkg/monitoring"
	"github.com/rentzentro/platform/pkg/redis"
	"github.com/rentzentro/platform/pkg/server"
	"github.com/rentzentro/platform/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("rentzentro")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting RentZentro platform API")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if config.GetEnvBool("DB_APPLY_SCHEMA", true) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := database.ApplySchema(ctx, db, logger); err != nil {
			cancel()
			logger.WithError(err).Fatal("Failed to apply database schema")
		}
		cancel()
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("rentzentro", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("rentzentro", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
		"JWT_SECRET":   jwtSecret,
	}))

	metrics := handlers.NewMetrics(metricsCollector)

	// Provider clients. Unconfigured clients stay usable objects; the
	// owning endpoints answer 503 until the keys arrive.
	stripeClient := stripeclient.NewClient(stripeclient.Config{
		SecretKey:     config.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret: config.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		Logger:        logger,
	})
	esignClient := esign.NewClient(esign.ConfigFromEnv(logger))

	var s3Client *storage.S3Client
	if s3cfg := storage.ConfigFromEnv(); s3cfg.Bucket != "" {
		var err error
		s3Client, err = storage.NewS3Client(s3cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize object storage")
		}
	} else {
		logger.Warn("S3_BUCKET not set, document and photo endpoints disabled")
	}

	healthChecker.AddCheck("stripe", monitoring.ProviderHealthCheck("stripe", stripeClient.IsConfigured()))
	healthChecker.AddCheck("esign", monitoring.ProviderHealthCheck("esign", esignClient.IsConfigured()))
	healthChecker.AddCheck("storage", monitoring.ProviderHealthCheck("object storage", s3Client != nil))

	// Public listing cache: Redis when configured so all instances share
	// entries, in-process otherwise.
	var cache listingcache.ListingCache
	if redisCfg := redis.ConfigFromEnv(); len(redisCfg.Addrs) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		redisClient, err := redis.NewUniversalClient(ctx, redisCfg)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisClient.Close()
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
		cache = listingcache.NewRedisCache(redisClient, listingcache.DefaultTTL, logger)
	} else {
		logger.Info("REDIS_ADDRS not set, using in-process listing cache")
		cacheOp := func(op string) func(map[string]string) {
			return func(map[string]string) { metrics.ListingCacheOps.WithLabelValues(op).Inc() }
		}
		cache = listingcache.NewMemoryCache(listingcache.DefaultTTL, platformcache.MetricsHooks{
			OnHit:   cacheOp("hit"),
			OnMiss:  cacheOp("miss"),
			OnStale: cacheOp("stale"),
			OnStore: cacheOp("store"),
			OnError: cacheOp("error"),
		})
	}

	notifier := notify.NewEmailNotifier(notify.LoadConfig(), logger)

	h := handlers.New(handlers.Config{
		DB:                  db,
		Logger:              logger,
		Metrics:             metrics,
		Stripe:              stripeClient,
		Esign:               esignClient,
		Storage:             s3Client,
		Listings:            cache,
		Notifier:            notifier,
		WebAppURL:           config.GetEnv("WEB_APP_URL", "http://localhost:3000"),
		SubscriptionPriceID: config.GetEnv("STRIPE_SUBSCRIPTION_PRICE_ID", ""),
		TrialDays:           config.GetEnvInt64("SUBSCRIPTION_TRIAL_DAYS", 0),
	})

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "rentzentro", healthChecker, metricsCollector)

	// API routes (root level - nginx adds /api/v1 prefix)
	{
		// Public listing pages (no auth)
		public := router.Group("/public")
		{
			public.GET("/listings", h.PublicListings)
			public.GET("/listings/:id", h.PublicListing)
			public.POST("/listings/:id/inquiries", h.CreateListingInquiry)
		}

		// Webhook endpoints (no auth, signature-verified)
		router.POST("/webhooks/stripe", h.StripeWebhook)
		router.POST("/webhooks/esign", h.EsignWebhook)

		authed := router.Group("")
		authed.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			// Profile and invite acceptance work for any role, and stay
			// reachable when billing blocks everything else.
			authed.GET("/account", h.GetAccount)
			authed.PUT("/account", h.UpdateAccount)
			authed.POST("/team/accept", h.AcceptTeamInvite)

			// Billing management is landlord-only but never gated, so a
			// blocked landlord can always reach the pages that fix it.
			billing := authed.Group("/billing")
			billing.Use(auth.RequireRole(models.RoleLandlord))
			{
				billing.GET("/subscription", h.GetSubscription)
				billing.POST("/subscription/checkout", h.CreateSubscriptionCheckout)
				billing.POST("/subscription/portal", h.CreateBillingPortal)
				billing.POST("/subscription/cancel", h.CancelSubscription)
				billing.GET("/credits", h.GetCreditBalance)
				billing.POST("/credits/checkout", h.CreateCreditCheckout)
				billing.POST("/connect/account", h.SetupConnectAccount)
				billing.POST("/connect/onboarding-link", h.CreateOnboardingLink)
			}

			// Landlord dashboard, gated on an active subscription.
			landlord := authed.Group("")
			landlord.Use(auth.RequireRole(models.RoleLandlord), h.RequireActiveSubscription())
			{
				landlord.GET("/properties", h.GetProperties)
				landlord.POST("/properties", h.CreateProperty)
				landlord.GET("/properties/:id", h.GetProperty)
				landlord.PUT("/properties/:id", h.UpdateProperty)
				landlord.DELETE("/properties/:id", h.DeleteProperty)

				landlord.GET("/listings", h.GetListings)
				landlord.POST("/listings", h.CreateListing)
				landlord.GET("/listings/:id", h.GetListing)
				landlord.PUT("/listings/:id", h.UpdateListing)
				landlord.DELETE("/listings/:id", h.DeleteListing)
				landlord.POST("/listings/:id/publish", h.PublishListing)
				landlord.POST("/listings/:id/unpublish", h.UnpublishListing)
				landlord.POST("/listings/:id/photos", h.UploadListingPhoto)
				landlord.DELETE("/listings/:id/photos/:photoID", h.DeleteListingPhoto)
				landlord.GET("/listings/:id/inquiries", h.GetListingInquiries)

				landlord.GET("/maintenance", h.GetMaintenanceRequests)
				landlord.PUT("/maintenance/:id", h.UpdateMaintenanceRequest)

				landlord.POST("/documents", h.UploadDocument)
				landlord.GET("/documents", h.GetDocuments)
				landlord.GET("/documents/:id/url", h.GetDocumentURL)
				landlord.DELETE("/documents/:id", h.DeleteDocument)

				landlord.POST("/esign/envelopes", h.CreateEnvelope)
				landlord.GET("/esign/envelopes", h.GetEnvelopes)

				landlord.POST("/team/invites", h.SendTeamInvite)
				landlord.GET("/team", h.GetTeam)
				landlord.DELETE("/team/:id", h.RemoveTeamMember)

				landlord.GET("/tenancies", h.GetTenancies)
				landlord.POST("/tenancies", h.CreateTenancy)
				landlord.DELETE("/tenancies/:id", h.EndTenancy)
			}

			// Tenant portal
			portal := authed.Group("/portal")
			portal.Use(auth.RequireRole(models.RoleTenant))
			{
				portal.GET("/home", h.GetPortalHome)
				portal.POST("/rent/checkout", h.CreateRentCheckout)
				portal.GET("/rent/payments", h.GetRentPayments)
				portal.GET("/documents", h.GetPortalDocuments)
				portal.POST("/maintenance", h.CreatePortalMaintenanceRequest)
				portal.GET("/maintenance", h.GetPortalMaintenanceRequests)
			}
		}
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("rentzentro", "8080")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
