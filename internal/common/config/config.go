package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Session struct {
		Secret     string `env:"APP_SESSION_SECRET,required"`
		TTLSeconds int    `env:"APP_SESSION_TTL_SECONDS" envDefault:"604800"`
	}

	Telegram struct {
		BotToken             string `env:"TELEGRAM_BOT_TOKEN,required"`
		InitDataMaxAgeSecond int    `env:"TELEGRAM_INITDATA_MAX_AGE_SECONDS" envDefault:"86400"`
	}

	Database struct {
		URL string `env:"DATABASE_URL,required"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	// Provider credentials are required at startup: an empty key would
	// only surface as a signature failure on the first webhook.
	Sumsub struct {
		AppToken         string `env:"SUMSUB_APP_TOKEN,required,notEmpty"`
		SecretKey        string `env:"SUMSUB_SECRET_KEY,required,notEmpty"`
		WebhookSecretKey string `env:"SUMSUB_WEBHOOK_SECRET_KEY,required,notEmpty"`
		LevelName        string `env:"SUMSUB_LEVEL_NAME" envDefault:"basic-kyc-level"`
		BaseURL          string `env:"SUMSUB_BASE_URL" envDefault:"https://api.sumsub.com"`
	}

	Stripe struct {
		SecretKey     string `env:"STRIPE_SECRET_KEY,required,notEmpty"`
		WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required,notEmpty"`
	}

	Cryptomus struct {
		MerchantID string `env:"CRYPTOMUS_MERCHANT_ID,required,notEmpty"`
		PaymentKey string `env:"CRYPTOMUS_PAYMENT_KEY,required,notEmpty"`
		BaseURL    string `env:"CRYPTOMUS_BASE_URL" envDefault:"https://api.cryptomus.com"`
		// Public URL the provider calls back on payment status changes.
		CallbackURL string `env:"CRYPTOMUS_CALLBACK_URL"`
	}

	Coinbase struct {
		APIKey  string `env:"COINBASE_COMMERCE_API_KEY,required,notEmpty"`
		BaseURL string `env:"COINBASE_COMMERCE_BASE_URL" envDefault:"https://api.commerce.coinbase.com"`
	}

	Card struct {
		PriceUSDT string `env:"CARD_PRICE_USDT" envDefault:"10"`
		// Sagas older than the cutoff in a non-terminal state get swept.
		SweepIntervalSeconds int `env:"CARD_SAGA_SWEEP_INTERVAL_SECONDS" envDefault:"60"`
		SweepCutoffSeconds   int `env:"CARD_SAGA_SWEEP_CUTOFF_SECONDS" envDefault:"300"`
	}

	Dev struct {
		BypassAuth bool  `env:"DEV_BYPASS_AUTH" envDefault:"false"`
		TelegramID int64 `env:"DEV_TELEGRAM_ID" envDefault:"0"`
	}
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSeconds) * time.Second
}

// InitDataMaxAge returns the accepted age of Telegram initData.
func (c *Config) InitDataMaxAge() time.Duration {
	return time.Duration(c.Telegram.InitDataMaxAgeSecond) * time.Second
}

// Load reads the environment (plus an optional .env file) into a Config.
// The result is built once in main and passed by dependency injection;
// nothing in this repository reads the environment after startup.
func Load() (*Config, error) {
	// Missing .env is fine; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Session.TTLSeconds <= 0 {
		return nil, fmt.Errorf("APP_SESSION_TTL_SECONDS must be positive")
	}
	if cfg.Telegram.InitDataMaxAgeSecond <= 0 {
		return nil, fmt.Errorf("TELEGRAM_INITDATA_MAX_AGE_SECONDS must be positive")
	}
	if cfg.Card.SweepIntervalSeconds <= 0 || cfg.Card.SweepCutoffSeconds <= 0 {
		return nil, fmt.Errorf("card saga sweep settings must be positive")
	}
	if cfg.Dev.BypassAuth && cfg.Dev.TelegramID == 0 {
		return nil, fmt.Errorf("DEV_BYPASS_AUTH requires DEV_TELEGRAM_ID")
	}

	return cfg, nil
}
