package config

// EnvPrefix is the envconfig prefix applied to every variable.
const EnvPrefix = "shopkart"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv   = "SHOPKART_APP_ENV"
	EnvPort     = "SHOPKART_APP_PORT"
	EnvDBDSN    = "SHOPKART_DB_DSN"
	EnvDBHost   = "SHOPKART_DB_HOST"
	EnvDBUser   = "SHOPKART_DB_USER"
	EnvDBName   = "SHOPKART_DB_NAME"
	EnvRedisURL = "SHOPKART_REDIS_URL"

	EnvJWTSecret  = "SHOPKART_JWT_SECRET"
	EnvJWTIssuer  = "SHOPKART_JWT_ISSUER"
	EnvJWTExpMins = "SHOPKART_JWT_EXPIRATION_MINUTES"

	EnvCashfreeClientID      = "SHOPKART_CASHFREE_CLIENT_ID"
	EnvCashfreeClientSecret  = "SHOPKART_CASHFREE_CLIENT_SECRET"
	EnvCashfreeWebhookSecret = "SHOPKART_CASHFREE_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
