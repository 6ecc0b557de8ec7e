package config

const (
	// EnvPrefix scopes every environment variable this service reads.
	EnvPrefix = "MODHU"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "MODHU_APP_ENV"
	EnvPort                   = "MODHU_APP_PORT"
	EnvRedisURL               = "MODHU_REDIS_URL"
	EnvJWTSecret              = "MODHU_JWT_SECRET"
	EnvJWTIssuer              = "MODHU_JWT_ISSUER"
	EnvJWTExpMins             = "MODHU_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MODHU_REFRESH_TOKEN_TTL_MINUTES"

	EnvDBDSN  = "MODHU_DB_DSN"
	EnvDBHost = "MODHU_DB_HOST"
	EnvDBUser = "MODHU_DB_USER"
	EnvDBName = "MODHU_DB_NAME"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
