package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWebhookEventTTL covers Stripe's redelivery window of three days.
const DefaultWebhookEventTTL = 72 * time.Hour

// WebhookEventRepository remembers which provider events were already handled so that
// redeliveries can be acknowledged without reprocessing.
type WebhookEventRepository interface {
	// Claim marks the event as handled. It returns false when the event was already claimed.
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	// Release forgets a claim so that a redelivery is processed again.
	Release(ctx context.Context, provider, eventID string) error
}

type redisWebhookEventRepo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisWebhookEventRepo connects to redisURL and verifies the connection.
func NewRedisWebhookEventRepo(redisURL string, ttl time.Duration) (WebhookEventRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWebhookEventRepoWithClient(client, ttl), nil
}

// NewRedisWebhookEventRepoWithClient builds the repository from an existing client.
func NewRedisWebhookEventRepoWithClient(client *redis.Client, ttl time.Duration) WebhookEventRepository {
	if ttl <= 0 {
		ttl = DefaultWebhookEventTTL
	}
	return &redisWebhookEventRepo{client: client, prefix: "webhook:", ttl: ttl}
}

func (r *redisWebhookEventRepo) key(provider, eventID string) string {
	return r.prefix + provider + ":" + eventID
}

func (r *redisWebhookEventRepo) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(provider, eventID), time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s event %s: %w", provider, eventID, err)
	}
	return ok, nil
}

func (r *redisWebhookEventRepo) Release(ctx context.Context, provider, eventID string) error {
	if err := r.client.Del(ctx, r.key(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("release %s event %s: %w", provider, eventID, err)
	}
	return nil
}

type memoryWebhookEventRepo struct {
	mu     sync.Mutex
	ttl    time.Duration
	events map[string]time.Time
	now    func() time.Time
}

// NewMemoryWebhookEventRepo keeps claims in process memory. Claims are lost on restart.
func NewMemoryWebhookEventRepo(ttl time.Duration) WebhookEventRepository {
	if ttl <= 0 {
		ttl = DefaultWebhookEventTTL
	}
	return &memoryWebhookEventRepo{ttl: ttl, events: make(map[string]time.Time), now: time.Now}
}

func (r *memoryWebhookEventRepo) Claim(_ context.Context, provider, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := provider + ":" + eventID
	if expires, ok := r.events[key]; ok && now.Before(expires) {
		return false, nil
	}
	r.events[key] = now.Add(r.ttl)

	for k, expires := range r.events {
		if !now.Before(expires) {
			delete(r.events, k)
		}
	}
	return true, nil
}

func (r *memoryWebhookEventRepo) Release(_ context.Context, provider, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, provider+":"+eventID)
	return nil
}
