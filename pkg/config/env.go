package config

const (
	EnvPrefix = "HAGGLE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "HAGGLE_APP_ENV"
	EnvPort                   = "HAGGLE_APP_PORT"
	EnvOracleWebhookURL       = "HAGGLE_ORACLE_WEBHOOK_URL"
	EnvOracleWebhookSecret    = "HAGGLE_ORACLE_WEBHOOK_SECRET"
	EnvOracleTimeout          = "HAGGLE_ORACLE_TIMEOUT"
	EnvShopifyShop            = "HAGGLE_SHOPIFY_SHOP"
	EnvShopifyAccessToken     = "HAGGLE_SHOPIFY_ACCESS_TOKEN"
	EnvCommerceTimeout        = "HAGGLE_COMMERCE_TIMEOUT"
	EnvPricingMaxDiscount     = "HAGGLE_PRICING_MAX_DISCOUNT"
	EnvPricingDefaultDiscount = "HAGGLE_PRICING_DEFAULT_DISCOUNT"
	EnvCommitGuardEnabled     = "HAGGLE_COMMIT_GUARD_ENABLED"
	EnvRedisURL               = "HAGGLE_REDIS_URL"
	EnvCORSAllowedOrigins     = "HAGGLE_CORS_ALLOWED_ORIGINS"
)
