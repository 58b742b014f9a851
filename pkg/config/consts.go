package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "AMANA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Canonical environment variable names referenced outside struct tags.
const (
	EnvAppEnv     = "AMANA_APP_ENV"
	EnvPort       = "AMANA_APP_PORT"
	EnvDBDSN      = "AMANA_DB_DSN"
	EnvDBHost     = "AMANA_DB_HOST"
	EnvDBUser     = "AMANA_DB_USER"
	EnvDBName     = "AMANA_DB_NAME"
	EnvRedisURL   = "AMANA_REDIS_URL"
	EnvJWTSecret  = "AMANA_JWT_SECRET"
	EnvJWTIssuer  = "AMANA_JWT_ISSUER"
	EnvJWTExpMins = "AMANA_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
