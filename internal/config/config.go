package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// All values come from env (optionally pre-loaded from an env file).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Calls     CallsConfig
	Notify    NotifyConfig
	LiveKit   LiveKitConfig
	Directory DirectoryConfig
}

type AppConfig struct {
	Env  string `env:"APP_ENV"`
	Port int    `env:"APP_PORT" envDefault:"8080"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string `env:"DB_SSLMODE"`

	MigrateOnStart bool `env:"DB_MIGRATE_ON_START" envDefault:"true"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig is optional. An empty host keeps locks and provider settings in-process.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTIssuer       string        `env:"JWT_ISSUER"`
	JWTAudience     string        `env:"JWT_AUDIENCE"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TTL"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TTL"`
}

type CallsConfig struct {
	// StoreDriver selects the session store: memory, postgres or badger.
	StoreDriver string `env:"CALLS_STORE" envDefault:"memory"`
	BadgerDir   string `env:"CALLS_BADGER_DIR"`
	// LockTTL is the Redis lock expiry. Held locks are renewed at a third of it.
	LockTTL time.Duration `env:"CALLS_LOCK_TTL" envDefault:"30s"`
	// PurgeOnStart removes peer-to-peer calls left behind by a previous process.
	PurgeOnStart bool `env:"CALLS_PURGE_ON_START" envDefault:"true"`
}

type NotifyConfig struct {
	// Workers == 0 delivers events on the calling goroutine.
	Workers   int `env:"NOTIFY_WORKERS" envDefault:"0"`
	QueueSize int `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
}

type LiveKitConfig struct {
	URL       string        `env:"LIVEKIT_WS_URL"`
	APIKey    string        `env:"LIVEKIT_API_KEY"`
	APISecret string        `env:"LIVEKIT_API_SECRET"`
	TokenTTL  time.Duration `env:"LIVEKIT_TOKEN_TTL" envDefault:"1h"`
}

type DirectoryConfig struct {
	// SeedFile is a YAML file with users and spaces loaded at startup.
	SeedFile string `env:"DIRECTORY_SEED_FILE"`
}

// minRedisLockTTL keeps the lock renewal interval at one second or more.
const minRedisLockTTL = 3 * time.Second

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Load reads an optional env file (ENV_FILE, default .env), parses the environment and validates it.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	c.App.Env = strings.TrimSpace(c.App.Env)
	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !isValidPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	switch c.Calls.StoreDriver {
	case StoreMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("CALLS_STORE=memory is not allowed in production"))
		}
	case StorePostgres:
		errs = append(errs, c.validateDB()...)
	case StoreBadger:
		if strings.TrimSpace(c.Calls.BadgerDir) == "" {
			errs = append(errs, errors.New("CALLS_BADGER_DIR is required for CALLS_STORE=badger"))
		}
	default:
		errs = append(errs, fmt.Errorf("CALLS_STORE must be one of memory, postgres, badger, got %q", c.Calls.StoreDriver))
	}
	if c.Calls.LockTTL <= 0 {
		errs = append(errs, errors.New("CALLS_LOCK_TTL must be positive"))
	} else if c.Redis.Host != "" && c.Calls.LockTTL < minRedisLockTTL {
		errs = append(errs, fmt.Errorf("CALLS_LOCK_TTL must be at least %v with REDIS_HOST set, got %v", minRedisLockTTL, c.Calls.LockTTL))
	}

	if c.Redis.Host != "" && !isValidPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Notify.Workers < 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_WORKERS must be >= 0, got %d", c.Notify.Workers))
	}
	if c.Notify.Workers > 0 && c.Notify.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_QUEUE_SIZE must be > 0, got %d", c.Notify.QueueSize))
	}

	if (c.LiveKit.APIKey == "") != (c.LiveKit.APISecret == "") {
		errs = append(errs, errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET must be set together"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if !isValidPort(c.DB.Port) {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// RedisEnabled reports whether a Redis server is configured.
func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// LiveKitEnabled reports whether livekit credentials are configured.
func (c Config) LiveKitEnabled() bool {
	return c.LiveKit.APIKey != "" && c.LiveKit.APISecret != ""
}

func isValidPort(p int) bool {
	return p > 0 && p <= 65535
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
