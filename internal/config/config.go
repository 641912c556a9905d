package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvironment = "development"
	defaultHTTPAddr    = ":5000"
	defaultTokenTTL    = 24 * time.Hour
	defaultCORSOrigin  = "http://localhost:5173"
	defaultAuditEvery  = 10 * time.Minute
	minJWTSecretLength = 32
)

type Config struct {
	DBDSN         string        `mapstructure:"DB_DSN"`
	Environment   string        `mapstructure:"ENV"`
	HTTPAddr      string        `mapstructure:"HTTP_ADDR"`
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	CORSOrigins   []string      `mapstructure:"CORS_ORIGINS"`
	MigrationsDir string        `mapstructure:"MIGRATIONS_DIR"` // пусто = встроенные миграции
	AuditInterval time.Duration `mapstructure:"AUDIT_INTERVAL"` // 0 = аудит счётчиков выключен
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds the config from getenv, applying defaults and checks.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDSN:         getenv("DB_DSN"),
		Environment:   getenv("ENV"),
		HTTPAddr:      getenv("HTTP_ADDR"),
		JWTSecret:     getenv("JWT_SECRET"),
		MigrationsDir: getenv("MIGRATIONS_DIR"),
		CORSOrigins:   splitList(getenv("CORS_ORIGINS")),
		TokenTTL:      defaultTokenTTL,
		AuditInterval: defaultAuditEvery,
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = defaultEnvironment
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{defaultCORSOrigin}
	}
	if raw := getenv("TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("TOKEN_TTL must be a positive duration, got %q", raw)
		}
		cfg.TokenTTL = ttl
	}
	if raw := getenv("AUDIT_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval < 0 {
			return nil, fmt.Errorf("AUDIT_INTERVAL must be a non-negative duration, got %q", raw)
		}
		cfg.AuditInterval = interval
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
