package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Credit       CreditConfig
	Paystack     PaystackConfig
	Sendgrid     SendgridConfig
	Cron         CronConfig
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
	Env          string `envconfig:"AMANA_APP_ENV" required:"true"`
	Port         string `envconfig:"AMANA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AMANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AMANA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AMANA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AMANA_DB_DSN"`
	Driver string `envconfig:"AMANA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AMANA_DB_HOST"`
	LegacyPort     int    `envconfig:"AMANA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AMANA_DB_USER"`
	LegacyPassword string `envconfig:"AMANA_DB_PASSWORD"`
	LegacyName     string `envconfig:"AMANA_DB_NAME"`
	LegacySSLMode  string `envconfig:"AMANA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AMANA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AMANA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AMANA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AMANA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AMANA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AMANA_REDIS_ADDR"`
	Password     string        `envconfig:"AMANA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AMANA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AMANA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AMANA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AMANA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AMANA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AMANA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AMANA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AMANA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AMANA_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AMANA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AMANA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AMANA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AMANA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AMANA_ARGON_KEY_LEN" default:"32"`
}

// CreditConfig carries the tunables of the trust and credit engine.
// Defaults match the production scorecard.
type CreditConfig struct {
	LimitPerPoint      float64       `envconfig:"AMANA_CREDIT_LIMIT_PER_POINT" default:"600"`
	MaxLimit           float64       `envconfig:"AMANA_CREDIT_MAX_LIMIT" default:"60000"`
	MinScoreForCredit  int           `envconfig:"AMANA_CREDIT_MIN_SCORE" default:"40"`
	GrowthThreshold    float64       `envconfig:"AMANA_CREDIT_GROWTH_THRESHOLD" default:"5000"`
	OrderDueDays       int           `envconfig:"AMANA_CREDIT_ORDER_DUE_DAYS" default:"14"`
	DisbursementWindow time.Duration `envconfig:"AMANA_CREDIT_DISBURSEMENT_WINDOW" default:"1h"`
	ReconcileTolerance float64       `envconfig:"AMANA_CREDIT_RECONCILE_TOLERANCE" default:"0.5"`
}

type PaystackConfig struct {
	SecretKey   string        `envconfig:"AMANA_PAYSTACK_SECRET_KEY"`
	BaseURL     string        `envconfig:"AMANA_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL string        `envconfig:"AMANA_PAYSTACK_CALLBACK_URL"`
	Timeout     time.Duration `envconfig:"AMANA_PAYSTACK_TIMEOUT" default:"15s"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"AMANA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"AMANA_SENDGRID_FROM_EMAIL"`
	AdminEmail  string `envconfig:"AMANA_ADMIN_ALERT_EMAIL"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"AMANA_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"AMANA_CRON_LOCK_TTL" default:"4m"`
	// MetricsPort exposes /metrics on the worker. Empty disables the listener.
	MetricsPort string `envconfig:"AMANA_CRON_METRICS_PORT" default:"9091"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AMANA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AMANA_AUTO_MIGRATE" default:"false"`
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
