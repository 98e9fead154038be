// Package config loads T-Ville settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Storage  StorageConfig
	OAuth    OAuthConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // HTTPS-only cookies and HSTS
	Environment string // development, production or test
	Debug       bool
	SessionTTL  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns        int
	MinConns        int
	ConnectAttempts int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

type EmailConfig struct {
	Provider     string // resend or console
	FromAddress  string
	FromName     string
	BaseURL      string // used to build links in outgoing mail
	ResendAPIKey string
}

type StorageConfig struct {
	Provider      string // s3 or local
	LocalDir      string
	PublicBaseURL string
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MaxUploadMB   int
}

type OAuthConfig struct {
	Google OAuthProviderConfig
}

type OAuthProviderConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	Scopes       []string
}

// DSN renders the connection as a postgres:// URL, escaping credentials.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Load applies a .env file from the working directory, if present, and then
// reads the process environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Config from lookup. Malformed values are reported
// together rather than silently replaced by defaults.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	env := &envReader{lookup: lookup}

	cfg := &Config{
		Server: ServerConfig{
			Host:        env.str("SERVER_HOST", "0.0.0.0"),
			Port:        env.integer("SERVER_PORT", 8080),
			Secure:      env.boolean("SERVER_SECURE", false),
			Environment: env.str("APP_ENV", "development"),
			Debug:       env.boolean("DEBUG", false),
			SessionTTL:  env.duration("SESSION_TTL", 7*24*time.Hour),
		},
		Database: DatabaseConfig{
			Host:            env.str("DB_HOST", "localhost"),
			Port:            env.integer("DB_PORT", 5432),
			User:            env.str("DB_USER", "tville"),
			Password:        env.str("DB_PASSWORD", "tville"),
			DBName:          env.str("DB_NAME", "tville"),
			SSLMode:         env.str("DB_SSLMODE", "disable"),
			MaxConns:        env.integer("DB_MAX_CONNS", 20),
			MinConns:        env.integer("DB_MIN_CONNS", 2),
			ConnectAttempts: env.integer("DB_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Host:     env.str("REDIS_HOST", "localhost"),
			Port:     env.integer("REDIS_PORT", 6379),
			Password: env.str("REDIS_PASSWORD", ""),
			DB:       env.integer("REDIS_DB", 0),
			PoolSize: env.integer("REDIS_POOL_SIZE", 20),
		},
		Email: EmailConfig{
			Provider:     env.nonEmpty("EMAIL_PROVIDER", "console"),
			FromAddress:  env.str("EMAIL_FROM_ADDRESS", "noreply@tville.app"),
			FromName:     env.str("EMAIL_FROM_NAME", "T-Ville"),
			BaseURL:      env.nonEmpty("APP_BASE_URL", "http://localhost:8080"),
			ResendAPIKey: env.str("RESEND_API_KEY", ""),
		},
		Storage: StorageConfig{
			Provider:      env.nonEmpty("STORAGE_PROVIDER", "local"),
			LocalDir:      env.nonEmpty("STORAGE_LOCAL_DIR", "uploads"),
			PublicBaseURL: env.nonEmpty("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
			Bucket:        env.str("STORAGE_BUCKET", ""),
			Region:        env.nonEmpty("STORAGE_REGION", "auto"),
			Endpoint:      env.str("STORAGE_ENDPOINT", ""),
			AccessKey:     env.str("STORAGE_ACCESS_KEY", ""),
			SecretKey:     env.str("STORAGE_SECRET_KEY", ""),
			MaxUploadMB:   env.integer("STORAGE_MAX_UPLOAD_MB", 10),
		},
		OAuth: OAuthConfig{
			Google: OAuthProviderConfig{
				Enabled:      env.boolean("GOOGLE_OAUTH_ENABLED", false),
				ClientID:     env.str("GOOGLE_OAUTH_CLIENT_ID", ""),
				ClientSecret: env.str("GOOGLE_OAUTH_CLIENT_SECRET", ""),
				RedirectURL:  env.str("GOOGLE_OAUTH_REDIRECT_URL", ""),
				IssuerURL:    env.nonEmpty("GOOGLE_OIDC_ISSUER_URL", "https://accounts.google.com"),
				Scopes:       env.list("GOOGLE_OIDC_SCOPES", []string{"openid", "email", "profile"}),
			},
		},
	}

	if err := errors.Join(append(env.errs, cfg.validate()...)...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d out of range", c.Server.Port))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS exceeds DB_MAX_CONNS"))
	}
	if c.Storage.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("STORAGE_MAX_UPLOAD_MB must be positive"))
	}
	switch c.Storage.Provider {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("STORAGE_BUCKET and STORAGE_ENDPOINT are required for the s3 storage provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider))
	}
	if g := c.OAuth.Google; g.Enabled && (g.ClientID == "" || g.ClientSecret == "" || g.RedirectURL == "") {
		errs = append(errs, errors.New("GOOGLE_OAUTH_CLIENT_ID, GOOGLE_OAUTH_CLIENT_SECRET and GOOGLE_OAUTH_REDIRECT_URL are required when Google sign-in is enabled"))
	}
	return errs
}

// envReader reads typed variables and collects parse failures.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(key, fallback string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return fallback
}

// nonEmpty treats a blank value like an unset one.
func (e *envReader) nonEmpty(key, fallback string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	return parseVar(e, key, fallback, strconv.Atoi)
}

func (e *envReader) boolean(key string, fallback bool) bool {
	return parseVar(e, key, fallback, strconv.ParseBool)
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	return parseVar(e, key, fallback, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err == nil && d <= 0 {
			err = errors.New("must be positive")
		}
		return d, err
	})
}

// list splits a comma separated value, dropping blank items.
func (e *envReader) list(key string, fallback []string) []string {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseVar[T any](e *envReader, key string, fallback T, parse func(string) (T, error)) T {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := parse(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, v, err))
		return fallback
	}
	return parsed
}
