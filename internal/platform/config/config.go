package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	pkgstrings "onboard/pkg/platform/strings"
)

// Config is the whole process configuration.
type Config struct {
	Server      Server
	Database    Database
	Upload      Upload
	Certificate Certificate
	Redis       RedisConfig
	RateLimit   RateLimit
	Kafka       Kafka
	Admin       Admin
	LogLevel    string `validate:"oneof=debug info warn error"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `validate:"required"`
	MetricsAddr     string        `validate:"omitempty,nefield=Addr"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Database configures the applications repository. An empty URL selects the
// in-memory store.
type Database struct {
	URL          string        `validate:"omitempty,url"`
	Timeout      time.Duration `validate:"gt=0"`
	MaxOpenConns int           `validate:"gte=1"`
}

// Enabled reports whether a Postgres connection was configured.
func (d Database) Enabled() bool {
	return d.URL != ""
}

// Upload configures the temporary file store.
type Upload struct {
	Dir      string `validate:"required"`
	MaxBytes int64  `validate:"gt=0"`
}

// Certificate configures container validation.
type Certificate struct {
	DecodeTimeout time.Duration `validate:"gt=0"`
}

// RedisConfig configures the optional Redis client backing the rate limiter.
type RedisConfig struct {
	URL          string `validate:"omitempty,url"`
	PoolSize     int    `validate:"gte=1"`
	MinIdleConns int    `validate:"gte=0"`
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimit bounds onboarding submissions per client IP. Zero disables it.
type RateLimit struct {
	PerMinute int `validate:"gte=0"`
}

// Kafka configures the optional audit event sink.
type Kafka struct {
	Brokers []string `validate:"dive,hostname_port"`
	Topic   string   `validate:"required_with=Brokers"`
}

// Enabled reports whether audit events go to Kafka.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Admin configures the reviewer API. An empty hash disables it.
type Admin struct {
	TokenHash string `validate:"omitempty,bcrypt_hash"`
}

// Defaults applied when the environment is silent.
const (
	DefaultAddr            = ":5000"
	DefaultUploadDir       = "uploads"
	DefaultUploadMaxBytes  = 5 << 20
	DefaultDecodeTimeout   = 5 * time.Second
	DefaultDBTimeout       = 5 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultAuditTopic      = "onboarding.applications"
)

// FromEnv builds a Config from environment variables and validates it.
func FromEnv() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	r := &reader{getenv: getenv}

	addr := r.str("ONBOARD_ADDR", "")
	if addr == "" {
		if port := getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = DefaultAddr
		}
	}

	cfg := Config{
		Server: Server{
			Addr:            addr,
			MetricsAddr:     r.str("METRICS_ADDR", ""),
			ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		},
		Database: Database{
			URL:          databaseURL(getenv),
			Timeout:      r.duration("DB_TIMEOUT", DefaultDBTimeout),
			MaxOpenConns: r.integer("DB_MAX_OPEN_CONNS", 10),
		},
		Upload: Upload{
			Dir:      r.str("UPLOAD_DIR", DefaultUploadDir),
			MaxBytes: int64(r.integer("UPLOAD_MAX_BYTES", DefaultUploadMaxBytes)),
		},
		Certificate: Certificate{
			DecodeTimeout: r.duration("CERT_DECODE_TIMEOUT", DefaultDecodeTimeout),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 0),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimit{
			PerMinute: r.integer("RATE_LIMIT_PER_MINUTE", 0),
		},
		Kafka: Kafka{
			Brokers: pkgstrings.SplitList(getenv("KAFKA_BROKERS"), ","),
			Topic:   r.str("AUDIT_TOPIC", DefaultAuditTopic),
		},
		Admin: Admin{
			TokenHash: r.str("ADMIN_TOKEN_HASH", ""),
		},
		LogLevel: strings.ToLower(r.str("LOG_LEVEL", "info")),
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, fmt.Errorf("parse configuration: %w", err)
	}
	if err := newValidator().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// discrete DB_* variables when DB_HOST is set.
func databaseURL(getenv func(string) string) string {
	if dsn := getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	host := getenv("DB_HOST")
	if host == "" {
		return ""
	}
	port := getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	sslmode := getenv("DB_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenv("DB_USER"), getenv("DB_PASSWORD")),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + getenv("DB_DATABASE"),
		RawQuery: url.Values{"sslmode": []string{sslmode}}.Encode(),
	}
	return u.String()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("bcrypt_hash", func(fl validator.FieldLevel) bool {
		_, err := bcrypt.Cost([]byte(fl.Field().String()))
		return err == nil
	})
	return v
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	raw := strings.TrimSpace(r.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}
