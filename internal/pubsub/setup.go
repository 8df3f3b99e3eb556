package pubsub

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// NewClient returns a Pub/Sub client. A non-empty emulatorHost points it at a local emulator.
func NewClient(ctx context.Context, projectID, emulatorHost string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project id is required")
	}
	var opts []option.ClientOption
	if emulatorHost != "" {
		opts = append(opts, option.WithEndpoint(emulatorHost), option.WithoutAuthentication())
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topicID with the given retention when it does not exist. An existing topic
// with a different retention is reported, not changed.
func EnsureTopic(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, topicID string, retention time.Duration) (*pubsub.Topic, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", topicID, err)
	}
	if !exists {
		logger.Info().Str("topic", topicID).Dur("retention", retention).Msg("Creating topic")
		return client.CreateTopicWithConfig(ctx, topicID, &pubsub.TopicConfig{RetentionDuration: retention})
	}

	cfg, err := topic.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("get config for topic %s: %w", topicID, err)
	}
	if cfg.RetentionDuration != retention {
		logger.Warn().
			Str("topic", topicID).
			Dur("expected", retention).
			Interface("found", cfg.RetentionDuration).
			Msg("Topic retention differs, update it manually")
	}
	return topic, nil
}

// EnsurePullSubscription creates a pull subscription on topic when it does not exist.
func EnsurePullSubscription(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, subID string, topic *pubsub.Topic) error {
	sub := client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", subID, err)
	}
	if exists {
		logger.Info().Str("subscription", subID).Msg("Subscription already exists")
		return nil
	}
	logger.Info().Str("subscription", subID).Str("topic", topic.ID()).Msg("Creating subscription")
	_, err = client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{
		Topic:            topic,
		AckDeadline:      60 * time.Second,
		ExpirationPolicy: 31 * 24 * time.Hour,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: 10 * time.Second,
			MaximumBackoff: 600 * time.Second,
		},
	})
	if err != nil {
		return fmt.Errorf("create subscription %s: %w", subID, err)
	}
	return nil
}
