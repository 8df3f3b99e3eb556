package service

import (
	"context"

	"codedesk/internal/repository"

	"github.com/rs/zerolog"
)

// WebhookDeduper runs a handler at most once per provider event id while it succeeds.
// The claim store is an optimization; when it fails the event is processed anyway.
type WebhookDeduper struct {
	events repository.WebhookEventRepository
	logger zerolog.Logger
}

func NewWebhookDeduper(events repository.WebhookEventRepository, logger zerolog.Logger) *WebhookDeduper {
	return &WebhookDeduper{events: events, logger: logger.With().Str("service", "WebhookDeduper").Logger()}
}

// Process claims the event and runs fn. It reports duplicate=true without running fn when the
// event was already claimed. A failed fn releases the claim so a redelivery is processed.
func (d *WebhookDeduper) Process(ctx context.Context, provider, eventID string, fn func(context.Context) error) (bool, error) {
	if eventID == "" {
		return false, fn(ctx)
	}

	claimed, err := d.events.Claim(ctx, provider, eventID)
	if err != nil {
		d.logger.Warn().Err(err).Str("provider", provider).Str("event_id", eventID).Msg("Dedup claim failed, processing anyway")
		return false, fn(ctx)
	}
	if !claimed {
		d.logger.Info().Str("provider", provider).Str("event_id", eventID).Msg("Duplicate webhook event skipped")
		return true, nil
	}

	if err := fn(ctx); err != nil {
		if relErr := d.events.Release(context.WithoutCancel(ctx), provider, eventID); relErr != nil {
			d.logger.Error().Err(relErr).Str("provider", provider).Str("event_id", eventID).Msg("Failed to release webhook claim")
		}
		return false, err
	}
	return false, nil
}
