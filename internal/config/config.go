package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// SecretRefPrefix marks a config value that must be resolved from Secret Manager.
const SecretRefPrefix = "sm://"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`

	// Public URL of the web app, used to build checkout redirect targets
	AppURL string `envconfig:"APP_URL" default:"http://localhost:3000"`

	// Stripe settings
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	StripePriceID       string `envconfig:"STRIPE_PRICE_ID" required:"true"`
	StripeCheckoutMode  string `envconfig:"STRIPE_CHECKOUT_MODE" default:"payment"`

	// Clerk settings
	ClerkWebhookSecret string `envconfig:"CLERK_WEBHOOK_SECRET" required:"true"`
	ClerkJWTKey        string `envconfig:"CLERK_JWT_KEY" required:"true"`

	// Gemini settings
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel      string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	AssistantProOnly bool   `envconfig:"ASSISTANT_PRO_ONLY" default:"false"`

	// Webhook event dedup; in-memory when unset
	RedisURL string `envconfig:"REDIS_URL"`

	// GCP settings for Secret Manager and the entitlement event topic
	GCPProjectID           string `envconfig:"GCP_PROJECT_ID"`
	PubSubEntitlementTopic string `envconfig:"PUBSUB_ENTITLEMENT_TOPIC"`
	PubSubEmulatorHost     string `envconfig:"PUBSUB_EMULATOR_HOST"`

	// Raw webhook archive; disabled when the bucket is unset
	WebhookArchiveBucket string `envconfig:"WEBHOOK_ARCHIVE_BUCKET"`
	S3URL                string `envconfig:"S3_URL"`
	S3Region             string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey          string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey          string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StripeCheckoutMode {
	case "payment", "subscription":
	default:
		return fmt.Errorf("STRIPE_CHECKOUT_MODE must be payment or subscription, got %q", c.StripeCheckoutMode)
	}
	c.AppURL = strings.TrimRight(c.AppURL, "/")
	return nil
}

// IsDevelopment reports whether the app runs against local services.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SuccessURL is where Stripe sends the browser after a completed checkout.
// Stripe substitutes the {CHECKOUT_SESSION_ID} placeholder.
func (c *Config) SuccessURL() string {
	if c.AppURL == "" {
		return ""
	}
	return c.AppURL + "/pricing?success=true&session_id={CHECKOUT_SESSION_ID}"
}

// CancelURL is where Stripe sends the browser after an abandoned checkout.
func (c *Config) CancelURL() string {
	if c.AppURL == "" {
		return ""
	}
	return c.AppURL + "/pricing?canceled=true"
}

// SecretFields returns pointers to every config value that may hold a secret reference.
func (c *Config) SecretFields() map[string]*string {
	return map[string]*string{
		"STRIPE_SECRET_KEY":     &c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.StripeWebhookSecret,
		"CLERK_WEBHOOK_SECRET":  &c.ClerkWebhookSecret,
		"CLERK_JWT_KEY":         &c.ClerkJWTKey,
		"GEMINI_API_KEY":        &c.GeminiAPIKey,
		"DB_CONNECTION_STRING":  &c.DBConnectionString,
		"S3_SECRET_KEY":         &c.S3SecretKey,
	}
}

// HasSecretRefs reports whether any secret field still points at Secret Manager.
func (c *Config) HasSecretRefs() bool {
	for _, v := range c.SecretFields() {
		if strings.HasPrefix(*v, SecretRefPrefix) {
			return true
		}
	}
	return false
}
