package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
	Cron          CronConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"WARDROBE_APP_ENV" required:"true"`
	Port         string   `envconfig:"WARDROBE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"WARDROBE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"WARDROBE_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"WARDROBE_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"WARDROBE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"WARDROBE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WARDROBE_DB_DSN"`
	Driver string `envconfig:"WARDROBE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WARDROBE_DB_HOST"`
	LegacyPort     int    `envconfig:"WARDROBE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WARDROBE_DB_USER"`
	LegacyPassword string `envconfig:"WARDROBE_DB_PASSWORD"`
	LegacyName     string `envconfig:"WARDROBE_DB_NAME"`
	LegacySSLMode  string `envconfig:"WARDROBE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WARDROBE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WARDROBE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WARDROBE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WARDROBE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"WARDROBE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WARDROBE_REDIS_ADDR"`
	Password     string        `envconfig:"WARDROBE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WARDROBE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WARDROBE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WARDROBE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WARDROBE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WARDROBE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WARDROBE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"WARDROBE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"WARDROBE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"WARDROBE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"WARDROBE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WARDROBE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WARDROBE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WARDROBE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WARDROBE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WARDROBE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow             time.Duration `envconfig:"WARDROBE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIdentifierLimit    int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_LOGIN_IDENTIFIER_LIMIT" default:"5"`
	LoginIPLimit            int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow          time.Duration `envconfig:"WARDROBE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIdentifierLimit int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_REGISTER_IDENTIFIER_LIMIT" default:"3"`
	RegisterIPLimit         int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WARDROBE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WARDROBE_AUTO_MIGRATE" default:"false"`
}

// CartConfig controls guest carts and the catalog read surface.
type CartConfig struct {
	GuestTokenTTL    time.Duration `envconfig:"WARDROBE_CART_GUEST_TOKEN_TTL" default:"720h"`
	ProductsPageSize int           `envconfig:"WARDROBE_CATALOG_PAGE_SIZE" default:"12"`
	CatalogCacheTTL  time.Duration `envconfig:"WARDROBE_CATALOG_CACHE_TTL" default:"1h"`
	// Replay windows for the Idempotency-Key header.
	AddLineReplayTTL  time.Duration `envconfig:"WARDROBE_CART_ADD_LINE_REPLAY_TTL" default:"24h"`
	CheckoutReplayTTL time.Duration `envconfig:"WARDROBE_CHECKOUT_REPLAY_TTL" default:"168h"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"WARDROBE_CRON_INTERVAL" default:"24h"`
	GuestCartRetention    time.Duration `envconfig:"WARDROBE_CRON_GUEST_CART_RETENTION" default:"720h"`
	OutboxRetentionDays   int           `envconfig:"WARDROBE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	OutboxRetentionTarget string        `envconfig:"WARDROBE_CRON_OUTBOX_RETENTION_TARGET" default:"published"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"WARDROBE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"WARDROBE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"WARDROBE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"WARDROBE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"WARDROBE_PUBSUB_ORDERS_TOPIC" default:"wardrobe-order-events"`
	OrdersSubscription string `envconfig:"WARDROBE_PUBSUB_ORDERS_SUBSCRIPTION" default:"wardrobe-order-events-analytics"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"WARDROBE_BIGQUERY_DATASET" default:"wardrobe"`
	OrderEventsTable string `envconfig:"WARDROBE_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WARDROBE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WARDROBE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WARDROBE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when the sqlite driver is enabled", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
