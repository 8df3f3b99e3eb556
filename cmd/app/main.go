package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codedesk/internal/api/v1/router"
	"codedesk/internal/config"
	"codedesk/internal/logger"
	"codedesk/internal/service"

	"github.com/joho/godotenv"
)

// @title Codedesk API
// @version 1.0
// @description Code editor backend: identity sync, Stripe checkout and Pro entitlement, AI code assistance.
// @host localhost:8080
// @BasePath /v1
// @Schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// 1. Load configuration
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg("Error loading config")
	}

	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Warn().Msg("No .env file found")
	}

	ctx := context.Background()

	// 2. Resolve sm:// references
	if cfg.HasSecretRefs() {
		secrets, closeSecrets, err := service.NewSecretManagerService(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Secret Manager client")
		}
		if err := secrets.ResolveConfigSecrets(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve config secrets")
		}
		if err := closeSecrets(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Secret Manager client")
		}
		log.Info().Msg("Config secrets resolved from Secret Manager")
	}

	// 3. Build router
	r, cleanup, err := router.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}
	defer cleanup()

	// 4. Create HTTP server. Gemini calls can take a while, so writes get a longer timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Listen failed")
		}
	}()

	// 5. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}
	log.Info().Msg("Server shut down gracefully")
}
