package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"codedesk/internal/logger"
	"codedesk/internal/pubsub"
	"codedesk/internal/util"

	"github.com/spf13/cobra"
)

func jwksToPEMCmd() *cobra.Command {
	var kid string
	cmd := &cobra.Command{
		Use:   "jwks-to-pem [jwks-url]",
		Short: "Print a JWKS signing key as PEM for CLERK_JWT_KEY",
		Long: `Fetches a JSON Web Key Set, for example
https://<your-clerk-frontend-api>/.well-known/jwks.json, and prints the
signing key as a PEM public key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, args[0], nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("error fetching JWKS: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("error fetching JWKS: %s", resp.Status)
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return fmt.Errorf("error reading response: %w", err)
			}

			jwks, err := util.ParseJWKS(body)
			if err != nil {
				return err
			}
			key, err := jwks.SigningKey(kid)
			if err != nil {
				return err
			}
			pemKey, err := key.PEM()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), pemKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&kid, "kid", "", "key id to export; defaults to the first signing key")
	return cmd
}

func setupPubSubCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "setup-pubsub",
		Short: "Create the entitlement topic and a pull subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.PubSubEntitlementTopic == "" {
				return errors.New("PUBSUB_ENTITLEMENT_TOPIC is not set")
			}
			log := logger.New(cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, err := pubsub.NewClient(ctx, cfg.GCPProjectID, cfg.PubSubEmulatorHost)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					log.Error().Err(err).Msg("Failed to close pubsub client")
				}
			}()

			topic, err := pubsub.EnsureTopic(ctx, client, log, cfg.PubSubEntitlementTopic, retention)
			if err != nil {
				return err
			}
			if err := pubsub.EnsurePullSubscription(ctx, client, log, cfg.PubSubEntitlementTopic+"-sub", topic); err != nil {
				return err
			}
			log.Info().Str("topic", cfg.PubSubEntitlementTopic).Msg("Pub/Sub setup complete")
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 7*24*time.Hour, "topic message retention")
	return cmd
}
