package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App         AppConfig
	Oracle      OracleConfig
	Shopify     ShopifyConfig
	Pricing     PricingConfig
	Negotiation NegotiationConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HAGGLE_APP_ENV" default:"dev"`
	Port         string `envconfig:"HAGGLE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"HAGGLE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"HAGGLE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"HAGGLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// OracleConfig points at the generative-model webhook. The secret is optional at
// load time so the negotiation endpoint can fail closed per request instead.
type OracleConfig struct {
	WebhookURL    string        `envconfig:"HAGGLE_ORACLE_WEBHOOK_URL" default:"https://connect.testmyprompt.com/webhook/69769887fe2b20e0df198578"`
	WebhookSecret string        `envconfig:"HAGGLE_ORACLE_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"HAGGLE_ORACLE_TIMEOUT" default:"10s"`
}

type ShopifyConfig struct {
	Shop         string        `envconfig:"HAGGLE_SHOPIFY_SHOP"`
	AccessToken  string        `envconfig:"HAGGLE_SHOPIFY_ACCESS_TOKEN"`
	APIVersion   string        `envconfig:"HAGGLE_SHOPIFY_API_VERSION" default:"2024-01"`
	ClientID     string        `envconfig:"HAGGLE_SHOPIFY_CLIENT_ID"`
	ClientSecret string        `envconfig:"HAGGLE_SHOPIFY_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"HAGGLE_COMMERCE_TIMEOUT" default:"10s"`
}

// OAuthConfigured reports whether the install flow can exchange codes.
func (s ShopifyConfig) OAuthConfigured() bool {
	return strings.TrimSpace(s.ClientID) != "" && strings.TrimSpace(s.ClientSecret) != ""
}

type PricingConfig struct {
	MaxDiscount     string `envconfig:"HAGGLE_PRICING_MAX_DISCOUNT" default:"0.20"`
	DefaultDiscount string `envconfig:"HAGGLE_PRICING_DEFAULT_DISCOUNT" default:"0.10"`
	CurrencySymbol  string `envconfig:"HAGGLE_PRICING_CURRENCY_SYMBOL" default:"₹"`
}

// MaxDiscountRatio returns the parsed maximum discount ratio.
func (p PricingConfig) MaxDiscountRatio() (decimal.Decimal, error) {
	return parseRatio(EnvPricingMaxDiscount, p.MaxDiscount)
}

// DefaultDiscountRatio returns the parsed fallback discount ratio.
func (p PricingConfig) DefaultDiscountRatio() (decimal.Decimal, error) {
	return parseRatio(EnvPricingDefaultDiscount, p.DefaultDiscount)
}

type NegotiationConfig struct {
	InferLockFromPrice bool          `envconfig:"HAGGLE_NEGOTIATION_INFER_LOCK_FROM_PRICE" default:"true"`
	CommitGuardEnabled bool          `envconfig:"HAGGLE_COMMIT_GUARD_ENABLED" default:"false"`
	CommitGuardWindow  time.Duration `envconfig:"HAGGLE_COMMIT_GUARD_WINDOW" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HAGGLE_REDIS_URL"`
	PoolSize     int           `envconfig:"HAGGLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HAGGLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HAGGLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HAGGLE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"HAGGLE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether a Redis URL was supplied.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type RateLimitConfig struct {
	Window time.Duration `envconfig:"HAGGLE_RATE_LIMIT_WINDOW" default:"1m"`
	PerIP  int           `envconfig:"HAGGLE_RATE_LIMIT_PER_IP" default:"30"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"HAGGLE_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (c *Config) validate() error {
	var errs []error

	maxDiscount, err := c.Pricing.MaxDiscountRatio()
	if err != nil {
		errs = append(errs, err)
	}
	defaultDiscount, err := c.Pricing.DefaultDiscountRatio()
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		if !maxDiscount.IsPositive() || maxDiscount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			errs = append(errs, fmt.Errorf("%s must be within (0, 1)", EnvPricingMaxDiscount))
		}
		if defaultDiscount.IsNegative() || defaultDiscount.GreaterThan(maxDiscount) {
			errs = append(errs, fmt.Errorf("%s must be within [0, %s]", EnvPricingDefaultDiscount, EnvPricingMaxDiscount))
		}
	}

	if c.Oracle.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvOracleTimeout))
	}
	if c.Shopify.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvCommerceTimeout))
	}
	if strings.TrimSpace(c.Oracle.WebhookURL) == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvOracleWebhookURL))
	}
	if c.Negotiation.CommitGuardEnabled && !c.Redis.Enabled() {
		errs = append(errs, errors.New("commit guard requires "+EnvRedisURL))
	}

	return multierr.Combine(errs...)
}

func parseRatio(name, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}
