// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/tirebot/internal/paramstore"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AppURL      string `env:"APP_URL" envDefault:"http://localhost:8080"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeBaseURL       string `env:"STRIPE_API_URL"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `env:"TWILIO_WHATSAPP_NUMBER"`
	TwilioBaseURL    string `env:"TWILIO_API_URL"`

	AdminToken string `env:"ADMIN_TOKEN"`

	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionTable    string        `env:"SESSION_TABLE"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`

	PaymentTimeout      time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"10s"`
	ReconcileInterval   time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	ReconcileWindow     time.Duration `env:"RECONCILE_WINDOW" envDefault:"24h"`
	SkipMissingProducts bool          `env:"CHECKOUT_SKIP_MISSING"`
	InStockOnly         bool          `env:"IN_STOCK_ONLY" envDefault:"true"`

	QRServiceURL string `env:"QR_SERVICE_URL"`

	// ParamPrefix включает чтение незаданных секретов из SSM Parameter Store, например "/tirebot".
	ParamPrefix string `env:"PARAM_PREFIX"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения важнее флагов.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// Getter возвращает секрет по имени параметра.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

func (c *Config) secrets() []struct {
	name string
	dst  *string
} {
	return []struct {
		name string
		dst  *string
	}{
		{"database-uri", &c.DatabaseURI},
		{"stripe-secret-key", &c.StripeSecretKey},
		{"stripe-webhook-secret", &c.StripeWebhookSecret},
		{"twilio-auth-token", &c.TwilioAuthToken},
		{"admin-token", &c.AdminToken},
	}
}

// LoadSecrets заполняет незаданные секреты параметрами "<ParamPrefix>/<имя>".
// Отсутствующие параметры пропускаются.
func (c *Config) LoadSecrets(ctx context.Context, g Getter) error {
	if c.ParamPrefix == "" || g == nil {
		return nil
	}

	for _, s := range c.secrets() {
		if *s.dst != "" {
			continue
		}
		v, err := g.GetParameter(ctx, c.ParamPrefix+"/"+s.name)
		if errors.Is(err, paramstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load secret %s: %w", s.name, err)
		}
		*s.dst = v
	}
	return nil
}
