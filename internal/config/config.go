package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultDatabaseURL        = "file:wonderclimb.db?cache=shared"
	defaultJWTAccessTTL       = "15m"
	defaultRefreshTTL         = "168h"
	defaultActivationTTL      = "48h"
	defaultCookieSecure       = "false"
	defaultCookiePath         = "/api/v1/auth"
	defaultFrontendURL        = "http://localhost:5173"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultRefreshTokenPepper = "change-me-refresh-pepper"
	defaultMailProvider       = "log"
	defaultEmailFrom          = "noreply@wonderclimb.local"
	defaultEmailFromName      = "WonderClimb"
	defaultActivationSubject  = "Activate your {appName} account"
	defaultActivationTemplate = `<p>Hi {firstName} {lastName},</p>
<p>Welcome to {appName}. Confirm your email address by opening the link below:</p>
<p><a href="{activationLink}">{activationLink}</a></p>
<p>The link expires in {expiryHours} hours.</p>`
)

type Config struct {
	AppEnv      string
	AppName     string
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string

	JWTSecret                string
	JWTAccessTTL             time.Duration
	RefreshTTL               time.Duration
	RefreshTokenPepper       string
	RefreshReuseRevokeFamily bool

	ActivationEmailEnabled bool
	ActivationTTL          time.Duration

	CookieSecure   bool
	CookieSameSite string
	CookiePath     string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	FrontendURL        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string
	EmailQueue  string

	MailProvider            string
	SMTPHost                string
	SMTPPort                int
	SMTPUser                string
	SMTPPassword            string
	EmailFrom               string
	EmailFromName           string
	ActivationEmailSubject  string
	ActivationEmailTemplate string

	CORSAllowedOrigins []string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.AppName = strings.TrimSpace(getEnv("APP_NAME", defaultEmailFromName))
	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", "info"))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshTokenPepper))
	cfg.RefreshReuseRevokeFamily = parseBoolEnv("REFRESH_REUSE_REVOKE_FAMILY", "false")

	var err error
	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.ActivationTTL, err = parseDurationEnv("ACTIVATION_TTL", defaultActivationTTL); err != nil {
		return nil, err
	}
	cfg.ActivationEmailEnabled = parseBoolEnv("ACTIVATION_EMAIL_ENABLED", "false")

	sameSiteDefault := "Lax"
	if isProdLike(cfg.AppEnv) {
		sameSiteDefault = "Strict"
	}
	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", sameSiteDefault))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))

	cfg.GoogleClientID = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	cfg.GoogleClientSecret = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET"))
	cfg.GoogleRedirectURI = strings.TrimSpace(os.Getenv("GOOGLE_REDIRECT_URI"))
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(getEnv("FRONTEND_URL", defaultFrontendURL)), "/")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", "0"); err != nil {
		return nil, err
	}

	cfg.RabbitMQURL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	cfg.EmailQueue = strings.TrimSpace(getEnv("EMAIL_QUEUE", "auth.email"))

	cfg.MailProvider = strings.ToLower(strings.TrimSpace(getEnv("MAIL_PROVIDER", defaultMailProvider)))
	cfg.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if cfg.SMTPPort, err = parseIntEnv("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	cfg.SMTPUser = strings.TrimSpace(os.Getenv("SMTP_USER"))
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.EmailFrom = strings.TrimSpace(getEnv("EMAIL_FROM", defaultEmailFrom))
	cfg.EmailFromName = strings.TrimSpace(getEnv("EMAIL_FROM_NAME", defaultEmailFromName))
	cfg.ActivationEmailSubject = getEnv("ACTIVATION_EMAIL_SUBJECT", defaultActivationSubject)
	cfg.ActivationEmailTemplate = getEnv("ACTIVATION_EMAIL_TEMPLATE", defaultActivationTemplate)

	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", cfg.FrontendURL))
	if !isProdLike(cfg.AppEnv) {
		cfg.CORSAllowedOrigins = appendMissing(cfg.CORSAllowedOrigins, devOrigins...)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return isProdLike(c.AppEnv) }

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}

func validateConfig(cfg *Config) error {
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.ActivationTTL <= 0 {
		return fmt.Errorf("ACTIVATION_TTL must be > 0")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}
	switch cfg.MailProvider {
	case "log", "smtp", "amqp":
	default:
		return fmt.Errorf("MAIL_PROVIDER must be one of: log, smtp, amqp")
	}
	if cfg.MailProvider == "smtp" && cfg.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when MAIL_PROVIDER=smtp")
	}
	if cfg.MailProvider == "amqp" && cfg.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required when MAIL_PROVIDER=amqp")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenPepper, defaultRefreshTokenPepper) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// devOrigins are the local frontend dev servers, trusted outside production.
var devOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

func appendMissing(list []string, extra ...string) []string {
	for _, e := range extra {
		found := false
		for _, v := range list {
			if v == e {
				found = true
				break
			}
		}
		if !found {
			list = append(list, e)
		}
	}
	return list
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
