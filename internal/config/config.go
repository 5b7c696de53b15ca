package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultTokenTTL is how long a login token stays valid when JWT_TTL is not set.
const DefaultTokenTTL = 24 * time.Hour

// Environment modes understood by the server.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Revocation store backends.
const (
	RevocationSQL   = "sql"
	RevocationRedis = "redis"
)

const devJWTSecret = "dev-insecure-secret-change-me"

// bcrypt's accepted cost range.
const (
	bcryptMinCost = 4
	bcryptMaxCost = 31
)

// Config holds the application configuration.
// It is built once at startup and must be treated as read-only afterwards.
type Config struct {
	ServerPort  int
	DatabaseURL string
	Environment string
	LogLevel    string

	JWTSecret  []byte
	JWTTTL     time.Duration
	BcryptCost int

	RevocationBackend  string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	TokenPurgeSchedule string

	CORSAllowedOrigins []string
}

// IsDevelopment reports whether internal error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Load loads configuration from environment variables or sets defaults.
// When CONFIG_FILE points to a YAML file its values are used for keys
// that are not set in the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 5000)
	v.SetDefault("DATABASE_URL", "./catalog.db")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", DefaultTokenTTL)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("REVOCATION_BACKEND", RevocationSQL)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_PURGE_SCHEDULE", "@hourly")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:         v.GetInt("PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		Environment:        strings.ToLower(v.GetString("APP_ENV")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		JWTSecret:          []byte(v.GetString("JWT_SECRET")),
		JWTTTL:             v.GetDuration("JWT_TTL"),
		BcryptCost:         v.GetInt("BCRYPT_COST"),
		RevocationBackend:  strings.ToLower(v.GetString("REVOCATION_BACKEND")),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		TokenPurgeSchedule: v.GetString("TOKEN_PURGE_SCHEDULE"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	if len(cfg.JWTSecret) == 0 {
		if cfg.Environment == EnvProduction {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = []byte(devJWTSecret)
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = DefaultTokenTTL
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.ServerPort)
	}

	if cfg.BcryptCost < bcryptMinCost || cfg.BcryptCost > bcryptMaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcryptMinCost, bcryptMaxCost)
	}

	switch cfg.RevocationBackend {
	case RevocationSQL, RevocationRedis:
	default:
		return nil, fmt.Errorf("unknown REVOCATION_BACKEND %q", cfg.RevocationBackend)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
