package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codedesk/internal/model"
	"codedesk/internal/pubsub"
	"codedesk/internal/repository"

	"github.com/rs/zerolog"
)

// Identity names the user a grant is for. ExternalID is preferred; Email is the fallback.
type Identity struct {
	ExternalID string
	Email      string
}

// Billing carries the Stripe correlation ids stored with a grant.
type Billing struct {
	CustomerID     string
	SubscriptionID string
}

type GrantResult struct {
	User       *model.User
	Path       string
	AlreadyPro bool
}

// EntitlementService grants the Pro plan. Grants are idempotent and safe to run concurrently
// for the same user.
type EntitlementService interface {
	GrantPro(ctx context.Context, identity Identity, billing Billing, source string) (*GrantResult, error)
}

type entitlementService struct {
	userRepo  repository.UserRepository
	publisher pubsub.Publisher
	topic     string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEntitlementService creates the service. Grant events are published to topic when it is set.
func NewEntitlementService(userRepo repository.UserRepository, publisher pubsub.Publisher, topic string, logger zerolog.Logger) EntitlementService {
	if publisher == nil {
		publisher = pubsub.NopPublisher{}
	}
	return &entitlementService{
		userRepo:  userRepo,
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("service", "EntitlementService").Logger(),
		now:       time.Now,
	}
}

func (s *entitlementService) GrantPro(ctx context.Context, identity Identity, billing Billing, source string) (*GrantResult, error) {
	identity.ExternalID = strings.TrimSpace(identity.ExternalID)
	identity.Email = strings.TrimSpace(identity.Email)

	// Postgres keeps microseconds; truncating lets AlreadyPro compare the stored value exactly.
	grant := model.ProGrant{
		StripeCustomerID:     billing.CustomerID,
		StripeSubscriptionID: billing.SubscriptionID,
		GrantedAt:            s.now().UTC().Truncate(time.Microsecond),
	}

	log := s.logger.With().
		Str("source", source).
		Str("external_id", identity.ExternalID).
		Str("email", identity.Email).
		Str("stripe_customer_id", billing.CustomerID).
		Str("stripe_subscription_id", billing.SubscriptionID).
		Logger()

	var (
		user *model.User
		path string
		err  error
	)
	switch {
	case identity.ExternalID != "":
		user, path, err = s.grantByExternalID(ctx, identity, grant)
	case identity.Email != "":
		user, path, err = s.grantByEmail(ctx, identity.Email, grant)
	default:
		err = fmt.Errorf("%w: grant has neither external id nor email", ErrUserNotFound)
	}
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to grant Pro")
		return nil, err
	}

	alreadyPro := user.ProSince != nil && !user.ProSince.Equal(grant.GrantedAt)
	log.Info().
		Str("user_id", user.UserID).
		Str("path", path).
		Bool("already_pro", alreadyPro).
		Msg("Granted Pro")

	s.publish(ctx, model.EntitlementEvent{
		UserID:               user.ID,
		ExternalID:           user.UserID,
		Email:                identity.Email,
		Path:                 path,
		Source:               source,
		AlreadyPro:           alreadyPro,
		StripeCustomerID:     billing.CustomerID,
		StripeSubscriptionID: billing.SubscriptionID,
		GrantedAt:            grant.GrantedAt,
	})

	return &GrantResult{User: user, Path: path, AlreadyPro: alreadyPro}, nil
}

func (s *entitlementService) grantByExternalID(ctx context.Context, identity Identity, grant model.ProGrant) (*model.User, string, error) {
	path := model.ResolvedByExternalID
	// The lookup only labels the path; the upsert below is what resolves races with Identity Sync.
	existing, err := s.userRepo.GetUserByID(ctx, identity.ExternalID)
	if err != nil {
		return nil, path, fmt.Errorf("lookup user %s: %w", identity.ExternalID, err)
	}
	if existing == nil {
		path = model.ResolvedByCreation
	}

	user, err := s.userRepo.UpsertProUser(ctx, &model.User{
		UserID: identity.ExternalID,
		Email:  identity.Email,
		Name:   placeholderName(identity.Email),
	}, grant)
	if err != nil {
		return nil, path, fmt.Errorf("grant pro to %s: %w", identity.ExternalID, err)
	}
	return user, path, nil
}

func (s *entitlementService) grantByEmail(ctx context.Context, email string, grant model.ProGrant) (*model.User, string, error) {
	path := model.ResolvedByEmail
	existing, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, path, fmt.Errorf("lookup user by email: %w", err)
	}
	if existing == nil {
		return nil, path, fmt.Errorf("%w: no user with email %s", ErrUserNotFound, email)
	}
	user, err := s.userRepo.GrantProByInternalID(ctx, existing.ID, grant)
	if err != nil {
		return nil, path, fmt.Errorf("grant pro to %s: %w", existing.UserID, err)
	}
	if user == nil {
		return nil, path, fmt.Errorf("%w: user %s disappeared", ErrUserNotFound, existing.UserID)
	}
	return user, path, nil
}

func (s *entitlementService) publish(ctx context.Context, event model.EntitlementEvent) {
	if s.topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := pubsub.PublishJSON(ctx, s.publisher, s.topic, event); err != nil {
		s.logger.Warn().Err(err).Str("user_id", event.ExternalID).Msg("Failed to publish entitlement event")
	}
}

// placeholderName derives a display name from the email local part.
func placeholderName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local = strings.TrimSpace(local); local != "" {
		return local
	}
	return "user"
}
