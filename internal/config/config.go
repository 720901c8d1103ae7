package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Database struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Schema   string
}

// DSN returns a pgx connection string for the relational store.
func (d Database) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Database,
		RawQuery: "sslmode=disable&search_path=" + url.QueryEscape(d.Schema),
	}
	return u.String()
}

type Config struct {
	Port   int
	AppEnv string

	DB Database

	MongoURI      string
	MongoDatabase string

	JWTSecret string
	TokenTTL  time.Duration

	AllowOrigins string

	ReconcileInterval time.Duration
	OrphanGrace       time.Duration
}

// Local reports whether the service runs in a development environment.
func (c Config) Local() bool {
	return c.AppEnv == "local"
}

// Load reads the configuration from the environment. Every missing required
// variable and every malformed value is reported in the returned error.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		AppEnv: getenv("APP_ENV", "local"),
		DB: Database{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			Username: os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_DATABASE"),
			Schema:   getenv("DB_SCHEMA", "public"),
		},
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getenv("MONGO_DATABASE", "notes"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AllowOrigins:  getenv("CORS_ALLOW_ORIGINS", "*"),
	}

	for name, value := range map[string]string{
		"DB_USERNAME": cfg.DB.Username,
		"DB_DATABASE": cfg.DB.Database,
		"MONGO_URI":   cfg.MongoURI,
		"JWT_SECRET":  cfg.JWTSecret,
	} {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	port, err := strconv.Atoi(getenv("PORT", "5000"))
	if err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: invalid port %q", os.Getenv("PORT")))
	}
	cfg.Port = port

	cfg.TokenTTL = duration("TOKEN_TTL", 360000*time.Second, &errs)
	cfg.ReconcileInterval = duration("RECONCILE_INTERVAL", 5*time.Minute, &errs)
	cfg.OrphanGrace = duration("ORPHAN_GRACE_PERIOD", 10*time.Minute, &errs)
	if cfg.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
