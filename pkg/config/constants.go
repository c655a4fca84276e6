package config

const (
	EnvPrefix = "WARDROBE"

	EnvAppEnv                 = "WARDROBE_APP_ENV"
	EnvPort                   = "WARDROBE_APP_PORT"
	EnvDBDSN                  = "WARDROBE_DB_DSN"
	EnvDBHost                 = "WARDROBE_DB_HOST"
	EnvDBUser                 = "WARDROBE_DB_USER"
	EnvDBPassword             = "WARDROBE_DB_PASSWORD"
	EnvDBName                 = "WARDROBE_DB_NAME"
	EnvRedisURL               = "WARDROBE_REDIS_URL"
	EnvJWTSecret              = "WARDROBE_JWT_SECRET"
	EnvJWTIssuer              = "WARDROBE_JWT_ISSUER"
	EnvJWTExpMins             = "WARDROBE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "WARDROBE_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "WARDROBE_USE_SQLITE"
	EnvGCPProjectID           = "WARDROBE_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "WARDROBE_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "WARDROBE_PUBSUB_ORDERS_SUBSCRIPTION"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite = "sqlite"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
