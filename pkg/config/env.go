package config

// EnvPrefix is the envconfig prefix applied to every variable.
const EnvPrefix = "BRIGHTCART"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Canonical env var names, shared with tests and deploy tooling.
const (
	EnvAppEnv                 = "BRIGHTCART_APP_ENV"
	EnvPort                   = "BRIGHTCART_APP_PORT"
	EnvDBDSN                  = "BRIGHTCART_DB_DSN"
	EnvDBHost                 = "BRIGHTCART_DB_HOST"
	EnvDBUser                 = "BRIGHTCART_DB_USER"
	EnvDBName                 = "BRIGHTCART_DB_NAME"
	EnvRedisURL               = "BRIGHTCART_REDIS_URL"
	EnvJWTSecret              = "BRIGHTCART_JWT_SECRET"
	EnvJWTIssuer              = "BRIGHTCART_JWT_ISSUER"
	EnvJWTExpMins             = "BRIGHTCART_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "BRIGHTCART_REFRESH_TOKEN_TTL_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
