package service

import (
	"context"
	"fmt"
	"strings"

	"codedesk/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// SecretAccessor is the Secret Manager call used to resolve config references.
type SecretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

type SecretManagerService struct {
	client    SecretAccessor
	projectID string
}

func NewSecretManagerService(ctx context.Context, projectID string) (*SecretManagerService, func() error, error) {
	if projectID == "" {
		return nil, nil, fmt.Errorf("GCP_PROJECT_ID is required to resolve %s references", config.SecretRefPrefix)
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &SecretManagerService{client: client, projectID: projectID}, client.Close, nil
}

// GetSecret returns the latest version of the named secret.
func (s *SecretManagerService) GetSecret(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}
	return strings.TrimSpace(string(result.GetPayload().GetData())), nil
}

// ResolveConfigSecrets replaces every sm://<name> value in cfg with the secret's latest version.
func (s *SecretManagerService) ResolveConfigSecrets(ctx context.Context, cfg *config.Config) error {
	for env, field := range cfg.SecretFields() {
		name, ok := strings.CutPrefix(*field, config.SecretRefPrefix)
		if !ok {
			continue
		}
		value, err := s.GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", env, err)
		}
		*field = value
	}
	return nil
}
