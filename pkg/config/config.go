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
	Store         StoreConfig
	Cart          CartConfig
	Checkout      CheckoutConfig
	Promotions    PromotionsConfig
	Shipping      ShippingConfig
	Carriers      CarrierConfig
	Webhooks      WebhooksConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Stripe        StripeConfig
	Sendgrid      SendgridConfig
	OpenAI        OpenAIConfig
	Automation    AutomationConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MODHU_APP_ENV" required:"true"`
	Port         string `envconfig:"MODHU_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MODHU_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MODHU_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MODHU_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics and /healthz on the workers when set,
	// e.g. ":9091". Empty disables the listener.
	MetricsAddr string `envconfig:"MODHU_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"MODHU_DB_DSN"`
	Driver string `envconfig:"MODHU_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MODHU_DB_HOST"`
	LegacyPort     int    `envconfig:"MODHU_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MODHU_DB_USER"`
	LegacyPassword string `envconfig:"MODHU_DB_PASSWORD"`
	LegacyName     string `envconfig:"MODHU_DB_NAME"`
	LegacySSLMode  string `envconfig:"MODHU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MODHU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MODHU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MODHU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MODHU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MODHU_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MODHU_REDIS_ADDR"`
	Password     string        `envconfig:"MODHU_REDIS_PASSWORD"`
	DB           int           `envconfig:"MODHU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MODHU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MODHU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MODHU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MODHU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MODHU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MODHU_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MODHU_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MODHU_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MODHU_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MODHU_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MODHU_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MODHU_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MODHU_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MODHU_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MODHU_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MODHU_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MODHU_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MODHU_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MODHU_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MODHU_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	DemoMode    bool `envconfig:"MODHU_DEMO_MODE" default:"false"`
	UseSQLite   bool `envconfig:"MODHU_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MODHU_AUTO_MIGRATE" default:"false"`
}

type StoreConfig struct {
	Name      string `envconfig:"MODHU_STORE_NAME" default:"Miel de Sol"`
	BaseURL   string `envconfig:"MODHU_STORE_BASE_URL" default:"http://localhost:3000"`
	FromEmail string `envconfig:"MODHU_STORE_FROM_EMAIL" default:"orders@mieldesol.test"`
	Currency  string `envconfig:"MODHU_STORE_CURRENCY" default:"usd"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"MODHU_CART_TTL" default:"720h"`
}

type CheckoutConfig struct {
	SuccessURL      string        `envconfig:"MODHU_CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/checkout/success"`
	CancelURL       string        `envconfig:"MODHU_CHECKOUT_CANCEL_URL" default:"http://localhost:3000/checkout/cancel"`
	PendingOrderTTL time.Duration `envconfig:"MODHU_CHECKOUT_PENDING_ORDER_TTL" default:"2h"`
}

type PromotionsConfig struct {
	LoyaltyMinOrders int `envconfig:"MODHU_PROMOTIONS_LOYALTY_MIN_ORDERS" default:"3"`
}

type ShippingConfig struct {
	QuoteTimeout          time.Duration `envconfig:"MODHU_SHIPPING_QUOTE_TIMEOUT" default:"5s"`
	FallbackStandardCents int64         `envconfig:"MODHU_SHIPPING_FALLBACK_STANDARD_CENTS" default:"599"`
	FallbackExpressCents  int64         `envconfig:"MODHU_SHIPPING_FALLBACK_EXPRESS_CENTS" default:"1499"`
	FreeShippingMinCents  int64         `envconfig:"MODHU_SHIPPING_FREE_MIN_CENTS" default:"0"`
}

type WebhooksConfig struct {
	FailureCap     int           `envconfig:"MODHU_WEBHOOKS_FAILURE_CAP" default:"10"`
	RequestTimeout time.Duration `envconfig:"MODHU_WEBHOOKS_REQUEST_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"MODHU_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"MODHU_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"MODHU_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"MODHU_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"MODHU_CRON_INTERVAL" default:"10m"`
	OutboxRetentionDays   int           `envconfig:"MODHU_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DeliveryRetentionDays int           `envconfig:"MODHU_CRON_DELIVERY_RETENTION_DAYS" default:"30"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"MODHU_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"MODHU_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"MODHU_STRIPE_ENV" default:"test"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"MODHU_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"MODHU_SENDGRID_FROM_EMAIL"`
}

type OpenAIConfig struct {
	APIKey string `envconfig:"MODHU_OPENAI_API_KEY"`
}

// CarrierConfig holds one shipping carrier account. Carriers with an empty
// base URL are skipped at wiring time.
type CarrierConfig struct {
	VelocityBaseURL string `envconfig:"MODHU_CARRIER_VELOCITY_BASE_URL"`
	VelocityAPIKey  string `envconfig:"MODHU_CARRIER_VELOCITY_API_KEY"`
	PosteoBaseURL   string `envconfig:"MODHU_CARRIER_POSTEO_BASE_URL"`
	PosteoAPIKey    string `envconfig:"MODHU_CARRIER_POSTEO_API_KEY"`
}

type AutomationConfig struct {
	APIKeys []string `envconfig:"MODHU_AUTOMATION_API_KEYS"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
