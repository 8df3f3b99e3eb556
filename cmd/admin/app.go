package main

import (
	"context"
	"fmt"

	"codedesk/internal/config"
	"codedesk/internal/logger"
	"codedesk/internal/pubsub"
	"codedesk/internal/repository"
	"codedesk/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// adminApp holds the pieces of the server the admin commands reuse.
type adminApp struct {
	cfg     *config.Config
	log     zerolog.Logger
	pool    *pgxpool.Pool
	closers []func()
}

// loadConfig reads the environment and resolves sm:// references.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.HasSecretRefs() {
		secrets, closeSecrets, err := service.NewSecretManagerService(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, err
		}
		defer closeSecrets()
		if err := secrets.ResolveConfigSecrets(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*adminApp, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	app := &adminApp{cfg: cfg, log: logger.New(cfg.LogLevel)}

	pool, err := repository.OpenPool(ctx, cfg.DBConnectionString, cfg.IsDevelopment())
	if err != nil {
		return nil, err
	}
	app.pool = pool
	app.closers = append(app.closers, pool.Close)
	return app, nil
}

func (a *adminApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *adminApp) users() repository.UserRepository {
	return repository.NewUserRepo(a.pool)
}

func (a *adminApp) entitlements(ctx context.Context) (service.EntitlementService, error) {
	var publisher pubsub.Publisher = pubsub.NopPublisher{}
	if a.cfg.PubSubEntitlementTopic != "" {
		p, err := pubsub.NewPublisher(ctx, a.cfg.GCPProjectID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = p.Close() })
		publisher = p
	}
	return service.NewEntitlementService(a.users(), publisher, a.cfg.PubSubEntitlementTopic, a.log), nil
}

func (a *adminApp) stripe(ctx context.Context) (*service.StripeService, error) {
	entitlements, err := a.entitlements(ctx)
	if err != nil {
		return nil, err
	}
	gateway := service.NewStripeGateway(a.cfg.StripeSecretKey, a.cfg.StripeWebhookSecret)
	return service.NewStripeService(a.cfg, gateway, entitlements, a.log), nil
}
