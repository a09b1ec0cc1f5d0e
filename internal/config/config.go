// Package config loads application settings from environment variables
// (optionally seeded from a .env file) with defaults and validation.
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

// WebSocket defaults for the chat socket.
const (
	DefaultWriteWait      = 10 * time.Second
	DefaultMaxMessageSize = 4096
	DefaultSendBuffer     = 256
	DefaultBufferSize     = 1024
)

// DatabaseConfig selects and locates the relational store.
type DatabaseConfig struct {
	Driver     string // postgres|sqlite
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

// DSN renders the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// RedisConfig locates the presence mirror. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// WSConfig tunes the chat socket. PongWait of zero disables keepalive pings
// and read deadlines, so idle connections are never timed out by the server.
type WSConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	GinMode         string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error
	LogPretty bool

	CORSAllowedOrigins []string

	// Per-user REST rate limit; RateRPS 0 disables it.
	RateRPS   float64
	RateBurst int

	DB    DatabaseConfig
	Redis RedisConfig
	Auth  AuthConfig
	WS    WSConfig
}

// LoadDotEnv seeds the process environment from the given files (".env" when
// none are given). A missing file is not an error.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:            getenv("PORT", "8080"),
		ReadTimeout:     getdur("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getdur("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getdur("SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxHeaderBytes:  getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:         strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		CORSAllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		RateRPS:            getfloat("RATE_RPS", 10),
		RateBurst:          getint("RATE_BURST", 20),

		DB: DatabaseConfig{
			Driver:     strings.ToLower(getenv("DB_DRIVER", "postgres")),
			Host:       getenv("DB_HOST", "localhost"),
			Port:       getenv("DB_PORT", "5432"),
			User:       getenv("DB_USER", "user"),
			Password:   getenv("DB_PASSWORD", "password"),
			Name:       getenv("DB_NAME", "tutorlinkdb"),
			SSLMode:    getenv("DB_SSLMODE", "disable"),
			SQLitePath: getenv("SQLITE_PATH", "tutorlink.db"),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			Issuer:    getenv("JWT_ISSUER", "tutorlink-service"),
			TokenTTL:  getdur("TOKEN_TTL", 72*time.Hour),
		},
		WS: WSConfig{
			ReadBufferSize:  getint("WS_READ_BUFFER", DefaultBufferSize),
			WriteBufferSize: getint("WS_WRITE_BUFFER", DefaultBufferSize),
			SendBuffer:      getint("WS_SEND_BUFFER", DefaultSendBuffer),
			MaxMessageSize:  int64(getint("WS_MAX_MESSAGE_SIZE", DefaultMaxMessageSize)),
			WriteWait:       getdur("WS_WRITE_WAIT", DefaultWriteWait),
			PongWait:        getdur("WS_PONG_WAIT", 0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateRPS > 0 && cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	switch cfg.DB.Driver {
	case "postgres":
	case "sqlite":
		if strings.TrimSpace(cfg.DB.SQLitePath) == "" {
			return cfg, errors.New("SQLITE_PATH must not be empty")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: postgres, sqlite")
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return cfg, errors.New("JWT_SECRET must be at least 16 bytes")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("TOKEN_TTL must be > 0")
	}
	if cfg.WS.SendBuffer < 1 {
		return cfg, errors.New("WS_SEND_BUFFER must be >= 1")
	}
	if cfg.WS.MaxMessageSize < 1 {
		return cfg, errors.New("WS_MAX_MESSAGE_SIZE must be >= 1")
	}
	if cfg.WS.WriteWait <= 0 {
		return cfg, errors.New("WS_WRITE_WAIT must be > 0")
	}
	if cfg.WS.PongWait < 0 {
		return cfg, errors.New("WS_PONG_WAIT must be >= 0")
	}

	return cfg, nil
}

// PingPeriod is how often keepalive pings are sent; zero when disabled.
func (w WSConfig) PingPeriod() time.Duration {
	return (w.PongWait * 9) / 10
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
