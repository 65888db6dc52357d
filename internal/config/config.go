package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAccessSecret and DefaultRefreshSecret are development fallbacks only.
	DefaultAccessSecret  = "dev-access-secret"
	DefaultRefreshSecret = "dev-refresh-secret"

	EnvProduction = "production"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Session  SessionConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Seed     SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver string // memory, postgres or mongo
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// MongoConfig holds MongoDB connection values.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig selects the session cache backend.
type SessionConfig struct {
	CacheDriver string // memory or redis
	KeyPrefix   string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	AccessTokenSecret     string
	RefreshTokenSecret    string
	AccessTokenTTLMinutes int
	RefreshTokenTTLHours  int
	BcryptCost            int
}

// SeedConfig describes an optional bootstrap administrator.
type SeedConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	mongoTimeout, err := getEnvAsDuration("MONGO_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid MONGO_TIMEOUT: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "access-control-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			Database: getEnv("MONGO_DATABASE", "access_control"),
			Timeout:  mongoTimeout,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Session: SessionConfig{
			CacheDriver: strings.ToLower(getEnv("SESSION_CACHE", "memory")),
			KeyPrefix:   getEnv("SESSION_KEY_PREFIX", "session:ttl:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AccessTokenSecret:     getEnv("ACCESS_TOKEN_SECRET", DefaultAccessSecret),
			RefreshTokenSecret:    getEnv("REFRESH_TOKEN_SECRET", DefaultRefreshSecret),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 168),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Seed: SeedConfig{
			AdminUsername: os.Getenv("SEED_ADMIN_USERNAME"),
			AdminEmail:    os.Getenv("SEED_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory", "postgres", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres store"))
	}

	switch c.Session.CacheDriver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_CACHE %q", c.Session.CacheDriver))
	}

	if c.Auth.AccessTokenSecret == "" || c.Auth.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("token secrets must not be empty"))
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.Auth.AccessTokenTTL() <= 0 {
		errs = append(errs, errors.New("access token ttl must be positive"))
	}
	if c.Auth.RefreshTokenTTL() <= c.Auth.AccessTokenTTL() {
		errs = append(errs, errors.New("refresh token ttl must exceed access token ttl"))
	}

	if c.App.IsProduction() {
		if c.Auth.AccessTokenSecret == DefaultAccessSecret || c.Auth.RefreshTokenSecret == DefaultRefreshSecret {
			errs = append(errs, errors.New("default token secrets are not allowed in production"))
		}
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs in production mode.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, EnvProduction)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// Enabled reports whether an admin should be seeded at startup.
func (s SeedConfig) Enabled() bool {
	return s.AdminUsername != "" && s.AdminPassword != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	return time.ParseDuration(val)
}
