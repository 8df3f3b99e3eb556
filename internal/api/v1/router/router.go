package router

import (
	"context"
	"net/http"
	"strings"

	_ "codedesk/docs"
	"codedesk/internal/api/v1/handler"
	"codedesk/internal/config"
	"codedesk/internal/middleware"
	"codedesk/internal/pubsub"
	"codedesk/internal/repository"
	"codedesk/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
)

// New wires the stores, services and handlers. The returned cleanup closes every client it opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// 1. Database
	pool, err := repository.OpenPool(ctx, cfg.DBConnectionString, cfg.IsDevelopment())
	if err != nil {
		return fail(err)
	}
	closers = append(closers, pool.Close)
	logger.Info().Msg("Database connection successful")

	if err := repository.ApplyMigrations(ctx, pool, logger); err != nil {
		return fail(err)
	}

	// 2. Webhook event dedup store
	var events repository.WebhookEventRepository
	if cfg.RedisURL != "" {
		events, err = repository.NewRedisWebhookEventRepo(cfg.RedisURL, repository.DefaultWebhookEventTTL)
		if err != nil {
			return fail(err)
		}
		logger.Info().Msg("Webhook dedup backed by Redis")
	} else {
		events = repository.NewMemoryWebhookEventRepo(repository.DefaultWebhookEventTTL)
		logger.Warn().Msg("REDIS_URL not set, webhook dedup is per-instance")
	}

	// 3. Raw webhook archive
	archive := service.NewNopWebhookArchive()
	if cfg.WebhookArchiveBucket != "" {
		s3Client, err := service.NewS3Client(ctx, cfg.S3URL, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			return fail(err)
		}
		archive = service.NewS3WebhookArchive(s3Client, cfg.WebhookArchiveBucket)
	}

	// 4. Entitlement event publisher
	var publisher pubsub.Publisher = pubsub.NopPublisher{}
	if cfg.PubSubEntitlementTopic != "" {
		p, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() {
			if err := p.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close Pub/Sub client")
			}
		})
		publisher = p
	}

	// 5. Gemini
	generator, err := service.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() {
		if err := generator.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Gemini client")
		}
	})

	clerkVerifier, err := service.NewClerkVerifier(cfg.ClerkWebhookSecret)
	if err != nil {
		return fail(err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	// 6. Repositories, services and handlers
	userRepo := repository.NewUserRepo(pool)

	userSvc := service.NewUserService(userRepo, logger)
	entitlementSvc := service.NewEntitlementService(userRepo, publisher, cfg.PubSubEntitlementTopic, logger)
	stripeSvc := service.NewStripeService(cfg, service.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret), entitlementSvc, logger)
	assistantSvc := service.NewAssistantService(generator, userRepo, cfg.AssistantProOnly, logger)
	deduper := service.NewWebhookDeduper(events, logger)

	userHandler := handler.NewUserHandler(userSvc, logger)
	billingHandler := handler.NewBillingHandler(stripeSvc, validate, logger)
	assistantHandler := handler.NewAssistantHandler(assistantSvc, validate, logger)
	webhookHandler := handler.NewWebhookHandler(stripeSvc, clerkVerifier, userSvc, deduper, archive, logger)

	// 7. Middleware
	authMiddleware := middleware.AuthMiddleware(cfg.ClerkJWTKey, logger)

	// 8. ServeMux
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	assistantHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	webhookHandler.RegisterRoutes(apiV1Mux)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/swagger/doc.json", serveSwaggerDoc(logger))

	// Redirect /api/* to /v1/* for older clients
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusPermanentRedirect)
	})

	// 9. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), cleanup, nil
}

func serveSwaggerDoc(logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to render swagger doc")
			http.Error(w, "swagger doc unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	}
}
