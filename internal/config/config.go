package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPPort string
	GRPCPort string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	PaymentSecret      []byte
	BcryptCost         int

	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	CookieSecure       bool

	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	PublicBaseURL string

	OutboxInterval time.Duration
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (when present) and the process environment.
// Secrets are mandatory in production; elsewhere a random value is generated.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", "50060"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "storefront-events"),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnv("SMTP_PORT", "1025"),
		SMTPFrom:           getEnv("SMTP_FROM", "no-reply@storefront.local"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		MaxRequestBodySize: 20 << 10, // 20KB
	}

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = getDuration("OUTBOX_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	cfg.BcryptCost, err = strconv.Atoi(getEnv("BCRYPT_COST", "12"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	cfg.CookieSecure = cfg.IsProduction() || getEnv("COOKIE_SECURE", "false") == "true"

	if cfg.AccessTokenSecret, err = secret(cfg, "ACCESS_TOKEN_SECRET"); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenSecret, err = secret(cfg, "REFRESH_TOKEN_SECRET"); err != nil {
		return nil, err
	}
	if cfg.PaymentSecret, err = secret(cfg, "PAYMENT_SECRET_KEY"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func secret(cfg *Config, key string) ([]byte, error) {
	if v := os.Getenv(key); v != "" {
		return []byte(v), nil
	}
	if cfg.IsProduction() {
		return nil, fmt.Errorf("%s must be set in production", key)
	}
	slog.Warn("secret not set, generating a random one; tokens and signatures will not survive a restart", "key", key)
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Join(fmt.Errorf("generate %s", key), err)
	}
	return b, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
