package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BOOKMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BOOKMARKET_DB_DSN"
	EnvDBHost = "BOOKMARKET_DB_HOST"
	EnvDBUser = "BOOKMARKET_DB_USER"
	EnvDBName = "BOOKMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Lockout      LockoutConfig
	RateLimit    RateLimitConfig
	Checkout     CheckoutConfig
	Settlement   SettlementConfig
	Notify       NotifyConfig
	Search       SearchConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"BOOKMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOOKMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOKMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKMARKET_DB_DSN"`
	Driver string `envconfig:"BOOKMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOKMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKMARKET_DB_USER"`
	LegacyPassword string `envconfig:"BOOKMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKMARKET_REDIS_READ_TIMEOUT" default:"2s"`
	WriteTimeout time.Duration `envconfig:"BOOKMARKET_REDIS_WRITE_TIMEOUT" default:"2s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"BOOKMARKET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"BOOKMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"BOOKMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"BOOKMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BOOKMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BOOKMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BOOKMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BOOKMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BOOKMARKET_ARGON_KEY_LEN" default:"32"`
}

type LockoutConfig struct {
	MaxFailedAttempts int           `envconfig:"BOOKMARKET_LOCKOUT_MAX_FAILED_ATTEMPTS" default:"5"`
	Duration          time.Duration `envconfig:"BOOKMARKET_LOCKOUT_DURATION" default:"15m"`
}

type RateLimitConfig struct {
	PerMinute int `envconfig:"BOOKMARKET_RATE_LIMIT_PER_MIN" default:"100"`
	PerHour   int `envconfig:"BOOKMARKET_RATE_LIMIT_PER_HOUR" default:"1000"`
}

type CheckoutConfig struct {
	PlatformFeePct   int `envconfig:"BOOKMARKET_PLATFORM_FEE_PCT" default:"10"`
	SessionTTLMin    int `envconfig:"BOOKMARKET_SESSION_TTL_MIN" default:"30"`
	RefundWindowDays int `envconfig:"BOOKMARKET_REFUND_WINDOW_DAYS" default:"30"`
}

// SessionTTL returns the checkout session TTL.
func (c CheckoutConfig) SessionTTL() time.Duration {
	if c.SessionTTLMin <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// RefundWindow returns how long after delivery a refund stays possible.
func (c CheckoutConfig) RefundWindow() time.Duration {
	if c.RefundWindowDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.RefundWindowDays) * 24 * time.Hour
}

type SettlementConfig struct {
	PeriodDays int `envconfig:"BOOKMARKET_SETTLEMENT_PERIOD_DAYS" default:"7"`
}

type NotifyConfig struct {
	MaxRetries int    `envconfig:"BOOKMARKET_MAX_NOTIFY_RETRIES" default:"5"`
	FromEmail  string `envconfig:"BOOKMARKET_NOTIFY_FROM_EMAIL" default:"noreply@bookmarket.dk"`
}

type SearchConfig struct {
	HotCacheTTL       time.Duration `envconfig:"BOOKMARKET_SEARCH_HOT_CACHE_TTL" default:"15m"`
	WarmCacheTTL      time.Duration `envconfig:"BOOKMARKET_SEARCH_WARM_CACHE_TTL" default:"10m"`
	ColdCacheTTL      time.Duration `envconfig:"BOOKMARKET_SEARCH_COLD_CACHE_TTL" default:"5m"`
	AnalyticsCacheTTL time.Duration `envconfig:"BOOKMARKET_SEARCH_ANALYTICS_CACHE_TTL" default:"2m"`
	BackfillWorkers   int           `envconfig:"BOOKMARKET_SEARCH_BACKFILL_WORKERS" default:"10"`
	IndexPartitions   int           `envconfig:"BOOKMARKET_SEARCH_INDEX_PARTITIONS" default:"8"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BOOKMARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BOOKMARKET_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BOOKMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BOOKMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	UserTopic                string `envconfig:"BOOKMARKET_PUBSUB_USER_TOPIC" default:"user_events"`
	UserSubscription         string `envconfig:"BOOKMARKET_PUBSUB_USER_SUBSCRIPTION" required:"true"`
	OrderTopic               string `envconfig:"BOOKMARKET_PUBSUB_ORDER_TOPIC" default:"order_events"`
	OrderSubscription        string `envconfig:"BOOKMARKET_PUBSUB_ORDER_SUBSCRIPTION" required:"true"`
	BookTopic                string `envconfig:"BOOKMARKET_PUBSUB_BOOK_TOPIC" default:"book_events"`
	BookSubscription         string `envconfig:"BOOKMARKET_PUBSUB_BOOK_SUBSCRIPTION" required:"true"`
	WarehouseTopic           string `envconfig:"BOOKMARKET_PUBSUB_WAREHOUSE_TOPIC" default:"warehouse_events"`
	WarehouseSubscription    string `envconfig:"BOOKMARKET_PUBSUB_WAREHOUSE_SUBSCRIPTION" required:"true"`
	SearchTopic              string `envconfig:"BOOKMARKET_PUBSUB_SEARCH_TOPIC" default:"search_events"`
	SearchSubscription       string `envconfig:"BOOKMARKET_PUBSUB_SEARCH_SUBSCRIPTION" required:"true"`
	CompensationTopic        string `envconfig:"BOOKMARKET_PUBSUB_COMPENSATION_TOPIC" default:"compensation_events"`
	CompensationSubscription string `envconfig:"BOOKMARKET_PUBSUB_COMPENSATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BOOKMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BOOKMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BOOKMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"BOOKMARKET_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOOKMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOOKMARKET_AUTO_MIGRATE" default:"false"`
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
