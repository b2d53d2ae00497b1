package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"namex/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr                   string
	DatabaseURL            string
	Redis                  RedisConfig
	Kafka                  KafkaConfig
	Solr                   SolrConfig
	Payment                PaymentConfig
	JWTSigningKey          string
	ServiceAccountUsername string
	LogLevel               string
	LogFormat              string
	Expiry                 ExpiryConfig
	CheckoutLockTTL        time.Duration
	HTTPClientTimeout      time.Duration
}

// RedisConfig configures the shared lock backend. An empty URL means
// in-process locks.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	Partitions        int32
	ReplicationFactor int16
}

type SolrConfig struct {
	URL  string
	Core string
}

type PaymentConfig struct {
	URL   string
	Token string
}

// ExpiryConfig drives the expiration date stamped on first decision.
type ExpiryConfig struct {
	Timezone        string
	Days            int
	RestorationDays int
}

// Location resolves the configured timezone.
func (e ExpiryConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load expiry timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present;
// real environment variables win.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:        getString("NAMEX_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:           strings.SplitList(os.Getenv("KAFKA_BROKERS")),
			NotificationTopic: getString("NOTIFICATION_TOPIC", "namex.emailer"),
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Solr: SolrConfig{
			URL:  os.Getenv("SOLR_URL"),
			Core: getString("SOLR_CORE", "possible.conflicts"),
		},
		Payment: PaymentConfig{
			URL:   os.Getenv("PAYMENT_API_URL"),
			Token: os.Getenv("PAYMENT_API_TOKEN"),
		},
		JWTSigningKey:          getString("JWT_SIGNING_KEY", defaultJWTSigningKey),
		ServiceAccountUsername: getString("SERVICE_ACCOUNT_USERNAME", "name_request_service_account"),
		LogLevel:               getString("LOG_LEVEL", "info"),
		LogFormat:              getString("LOG_FORMAT", "json"),
		Expiry: ExpiryConfig{
			Timezone: getString("EXPIRY_TIMEZONE", "America/Vancouver"),
		},
	}

	var err error
	if cfg.Expiry.Days, err = getInt("EXPIRY_DAYS", 56); err != nil {
		return Server{}, err
	}
	if cfg.Expiry.RestorationDays, err = getInt("RESTORATION_EXPIRY_DAYS", 421); err != nil {
		return Server{}, err
	}
	if cfg.CheckoutLockTTL, err = getDuration("CHECKOUT_LOCK_TTL", 30*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.HTTPClientTimeout, err = getDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return Server{}, err
	}
	if _, err := cfg.Expiry.Location(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return v, nil
}
