package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DBConfig holds the PostgreSQL connection settings.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Config holds all configuration for the portal API.
type Config struct {
	AppEnv string
	Port   string

	DB DBConfig

	RedisAddr string
	RedisDB   int

	SessionSecret        string
	SessionTTL           time.Duration
	PINMaxAge            time.Duration
	PINMaxFailedAttempts int

	UploadDir      string
	UploadMaxBytes int64

	CORSOrigins        []string
	AdminPhoneNumbers  []string
	RateLimitPerMinute int
	ReaperSchedule     string

	LogLevel string
	LogFile  string
}

var envBindings = map[string]string{
	"app.env":                 "APP_ENV",
	"app.port":                "PORT",
	"db.host":                 "DB_HOST",
	"db.port":                 "DB_PORT",
	"db.user":                 "DB_USER",
	"db.password":             "DB_PASSWORD",
	"db.name":                 "DB_NAME",
	"db.sslmode":              "DB_SSLMODE",
	"redis.addr":              "REDIS_ADDR",
	"redis.db":                "REDIS_DB",
	"session.secret":          "SESSION_SECRET",
	"session.ttl":             "SESSION_TTL",
	"pin.max_age":             "PIN_MAX_AGE",
	"pin.max_failed_attempts": "PIN_MAX_FAILED_ATTEMPTS",
	"upload.dir":              "UPLOAD_DIR",
	"upload.max_bytes":        "UPLOAD_MAX_BYTES",
	"cors.origins":            "CORS_ORIGINS",
	"admin.phone_numbers":     "ADMIN_PHONE_NUMBERS",
	"ratelimit.per_minute":    "RATE_LIMIT_PER_MINUTE",
	"reaper.schedule":         "REAPER_SCHEDULE",
	"log.level":               "LOG_LEVEL",
	"log.file":                "LOG_FILE",
}

// Load reads configs/.env (or .env) into the process environment and resolves
// every key through viper. Missing .env files are not an error.
func Load() (*Config, error) {
	for _, path := range []string{"configs/.env", ".env"} {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading %s: %w", path, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	v.SetDefault("app.env", "dev")
	v.SetDefault("app.port", "8080")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "postgres")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("pin.max_age", "2160h")
	v.SetDefault("pin.max_failed_attempts", 5)
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_bytes", 5*1024*1024)
	v.SetDefault("cors.origins", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("ratelimit.per_minute", 20)
	v.SetDefault("reaper.schedule", "@hourly")
	v.SetDefault("log.level", "info")

	cfg := &Config{
		AppEnv: v.GetString("app.env"),
		Port:   v.GetString("app.port"),
		DB: DBConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		RedisAddr:            v.GetString("redis.addr"),
		RedisDB:              v.GetInt("redis.db"),
		SessionSecret:        v.GetString("session.secret"),
		SessionTTL:           v.GetDuration("session.ttl"),
		PINMaxAge:            v.GetDuration("pin.max_age"),
		PINMaxFailedAttempts: v.GetInt("pin.max_failed_attempts"),
		UploadDir:            v.GetString("upload.dir"),
		UploadMaxBytes:       v.GetInt64("upload.max_bytes"),
		CORSOrigins:          splitList(v.GetString("cors.origins")),
		AdminPhoneNumbers:    splitList(v.GetString("admin.phone_numbers")),
		RateLimitPerMinute:   v.GetInt("ratelimit.per_minute"),
		ReaperSchedule:       v.GetString("reaper.schedule"),
		LogLevel:             v.GetString("log.level"),
		LogFile:              v.GetString("log.file"),
	}

	if cfg.SessionSecret == "" && !cfg.IsProduction() {
		// Development fallback only.
		cfg.SessionSecret = "dev_session_secret_change_me"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the resolved configuration for values the server cannot run without.
func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Port == "" || c.DB.Name == "" || c.DB.User == "" {
		return errors.New("missing database config (DB_HOST/DB_PORT/DB_NAME/DB_USER)")
	}
	if _, err := net.LookupPort("tcp", c.DB.Port); err != nil {
		return fmt.Errorf("invalid DB_PORT %q: %w", c.DB.Port, err)
	}
	if c.Port == "" {
		return errors.New("missing PORT")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required in production")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.PINMaxFailedAttempts <= 0 {
		return fmt.Errorf("PIN_MAX_FAILED_ATTEMPTS must be positive, got %d", c.PINMaxFailedAttempts)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}
	return nil
}

// IsProduction reports whether the server runs with production cookie and logging settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DB.User + ":" + c.DB.Password + "@" + net.JoinHostPort(c.DB.Host, c.DB.Port) +
		"/" + c.DB.Name + "?sslmode=" + c.DB.SSLMode
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
