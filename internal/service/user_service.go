package service

import (
	"context"
	"fmt"
	"strings"

	"codedesk/internal/model"
	"codedesk/internal/repository"

	"github.com/rs/zerolog"
)

type UserService interface {
	// Sync records a user from the identity provider. An existing user is left untouched.
	Sync(ctx context.Context, externalID, email, name string) (bool, error)
	Get(ctx context.Context, externalID string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) Sync(ctx context.Context, externalID, email, name string) (bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return false, fmt.Errorf("sync user: empty external id")
	}
	created, err := s.userRepo.CreateUserIfNotExists(ctx, &model.User{
		UserID: externalID,
		Email:  strings.TrimSpace(email),
		Name:   strings.TrimSpace(name),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", externalID).Msg("Failed to sync user")
		return false, err
	}
	if created {
		s.logger.Info().Str("user_id", externalID).Msg("User created from identity provider")
	} else {
		s.logger.Debug().Str("user_id", externalID).Msg("User already exists, sync skipped")
	}
	return created, nil
}

func (s *userService) Get(ctx context.Context, externalID string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, externalID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", externalID).Msg("Failed to fetch user")
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
