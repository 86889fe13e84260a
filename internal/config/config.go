package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	// S3-compatible object storage for uploaded and generated images.
	S3URL           string `envconfig:"S3_URL" required:"true"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL" required:"true"`
	S3Bucket        string `envconfig:"S3_BUCKET" required:"true"`
	S3Region        string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Upload limits.
	MaxUploadSizeMB     int    `envconfig:"MAX_UPLOAD_SIZE_MB" default:"5"`
	AllowedImageExtsRaw string `envconfig:"ALLOWED_IMAGE_EXTENSIONS" default:"jpg,jpeg,png,webp"`

	// Stripe settings. Price IDs map subscription plans to Stripe prices;
	// leaving one unset disables checkout for that plan.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceBasic    string `envconfig:"STRIPE_PRICE_BASIC"`
	StripePricePremium  string `envconfig:"STRIPE_PRICE_PREMIUM"`

	// Gemini image generation settings. An empty key leaves the generator
	// unconfigured and try-on requests fail with a provider error.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash-exp"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AllowedImageExts returns the configured extension allow-list, lowercased
// and without dots.
func (c *Config) AllowedImageExts() []string {
	parts := strings.Split(c.AllowedImageExtsRaw, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(p, ".")))
		if p != "" {
			exts = append(exts, p)
		}
	}
	return exts
}

// MaxUploadSizeBytes returns the upload ceiling in bytes.
func (c *Config) MaxUploadSizeBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}
