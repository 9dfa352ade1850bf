package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "lokapay"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Chain        ChainConfig
	Watcher      WatcherConfig
	Queue        QueueConfig
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
	if err := cfg.Chain.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOKAPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"LOKAPAY_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"LOKAPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOKAPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LOKAPAY_SERVICE_KIND" default:"worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOKAPAY_DB_DSN"`
	Driver string `envconfig:"LOKAPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOKAPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"LOKAPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOKAPAY_DB_USER"`
	LegacyPassword string `envconfig:"LOKAPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOKAPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOKAPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOKAPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOKAPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOKAPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOKAPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if strings.TrimSpace(d.DSN) != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("database DSN or host/user/name are required")
	}
	userInfo := url.User(d.LegacyUser)
	if d.LegacyPassword != "" {
		userInfo = url.UserPassword(d.LegacyUser, d.LegacyPassword)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:     d.LegacyName,
		RawQuery: url.Values{"sslmode": []string{d.LegacySSLMode}}.Encode(),
	}
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"LOKAPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOKAPAY_REDIS_ADDR"`
	Password     string        `envconfig:"LOKAPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOKAPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOKAPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOKAPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOKAPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOKAPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOKAPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ChainConfig carries everything needed to talk to the settlement chain.
type ChainConfig struct {
	RPCURL           string        `envconfig:"LOKAPAY_CHAIN_RPC_URL" required:"true"`
	ChainID          int64         `envconfig:"LOKAPAY_CHAIN_ID" required:"true"`
	OperatorKey      string        `envconfig:"LOKAPAY_CHAIN_OPERATOR_KEY" required:"true"`
	FactoryAddress   string        `envconfig:"LOKAPAY_CHAIN_FACTORY_ADDRESS" required:"true"`
	TokenAddress     string        `envconfig:"LOKAPAY_CHAIN_TOKEN_ADDRESS" required:"true"`
	HotWalletAddress string        `envconfig:"LOKAPAY_CHAIN_HOT_WALLET_ADDRESS" required:"true"`
	TokenDecimals    int32         `envconfig:"LOKAPAY_CHAIN_TOKEN_DECIMALS" default:"18"`
	MinGasNative     string        `envconfig:"LOKAPAY_CHAIN_MIN_GAS_NATIVE" default:"0.01"`
	ConfirmTimeout   time.Duration `envconfig:"LOKAPAY_CHAIN_CONFIRM_TIMEOUT" default:"3m"`
	CallTimeout      time.Duration `envconfig:"LOKAPAY_CHAIN_CALL_TIMEOUT" default:"15s"`
}

func (c *ChainConfig) validate() error {
	if _, err := decimal.NewFromString(c.MinGasNative); err != nil {
		return fmt.Errorf("invalid LOKAPAY_CHAIN_MIN_GAS_NATIVE %q: %w", c.MinGasNative, err)
	}
	if c.TokenDecimals <= 0 {
		return fmt.Errorf("token decimals must be positive")
	}
	return nil
}

// MinGas returns the minimum operator native balance in whole units.
func (c ChainConfig) MinGas() decimal.Decimal {
	value, err := decimal.NewFromString(c.MinGasNative)
	if err != nil {
		return decimal.RequireFromString("0.01")
	}
	return value
}

type WatcherConfig struct {
	Interval       time.Duration `envconfig:"LOKAPAY_WATCHER_INTERVAL" default:"10s"`
	DustThreshold  string        `envconfig:"LOKAPAY_WATCHER_DUST_THRESHOLD" default:"0.01"`
	ToleranceUnder string        `envconfig:"LOKAPAY_WATCHER_TOLERANCE_UNDER" default:"0.0001"`
	ToleranceOver  string        `envconfig:"LOKAPAY_WATCHER_TOLERANCE_OVER" default:"0.1"`
	LockTTL        time.Duration `envconfig:"LOKAPAY_WATCHER_LOCK_TTL" default:"2m"`
}

func (w WatcherConfig) Dust() decimal.Decimal {
	return decimalOr(w.DustThreshold, "0.01")
}

func (w WatcherConfig) Under() decimal.Decimal {
	return decimalOr(w.ToleranceUnder, "0.0001")
}

func (w WatcherConfig) Over() decimal.Decimal {
	return decimalOr(w.ToleranceOver, "0.1")
}

func decimalOr(raw, fallback string) decimal.Decimal {
	if value, err := decimal.NewFromString(raw); err == nil {
		return value
	}
	return decimal.RequireFromString(fallback)
}

type QueueConfig struct {
	PollInterval       time.Duration `envconfig:"LOKAPAY_QUEUE_POLL_INTERVAL" default:"2s"`
	MaxAttempts        int           `envconfig:"LOKAPAY_QUEUE_MAX_ATTEMPTS" default:"5"`
	BackoffBase        time.Duration `envconfig:"LOKAPAY_QUEUE_BACKOFF_BASE" default:"30s"`
	KeepCompleted      int           `envconfig:"LOKAPAY_QUEUE_KEEP_COMPLETED" default:"100"`
	KeepDead           int           `envconfig:"LOKAPAY_QUEUE_KEEP_DEAD" default:"500"`
	RetentionInterval  time.Duration `envconfig:"LOKAPAY_QUEUE_RETENTION_INTERVAL" default:"10m"`
	HandlerTimeout     time.Duration `envconfig:"LOKAPAY_QUEUE_HANDLER_TIMEOUT" default:"5m"`
	ClaimStaleAfterMin int           `envconfig:"LOKAPAY_QUEUE_CLAIM_STALE_AFTER_MIN" default:"15"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LOKAPAY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LOKAPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LOKAPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"LOKAPAY_PUBSUB_SETTLEMENT_TOPIC" default:"settlement-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LOKAPAY_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LOKAPAY_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LOKAPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"LOKAPAY_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LOKAPAY_AUTO_MIGRATE" default:"false"`
}
