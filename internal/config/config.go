// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// Port is the HTTP port the REST API listens on.
	Port int `mapstructure:"PORT"`
	// APIPrefix is the route prefix for every REST endpoint (e.g. /api/v1).
	APIPrefix string `mapstructure:"API_PREFIX"`
	// GRPCAddr is the address of the gRPC health server (e.g. :9091). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// CORSOrigin is a comma-separated list of allowed origins, or "*".
	CORSOrigin string `mapstructure:"CORS_ORIGIN"`
	// RateLimitTTL is the rate limit window in seconds.
	RateLimitTTL int `mapstructure:"RATE_LIMIT_TTL"`
	// RateLimitMax is the number of requests allowed per client in one window.
	RateLimitMax int `mapstructure:"RATE_LIMIT_MAX"`
	// TrustedProxies is a comma-separated list of CIDRs whose X-Forwarded-For header is trusted for the
	// client IP. Empty means the peer address is used as is.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis URL used for the notification queue and MFA login challenges.
	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTSecret signs access tokens (HS256).
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTRefreshSecret signs refresh tokens (HS256); must differ from JWTSecret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTExpiration is the access token lifetime (e.g. "15m").
	JWTExpiration string `mapstructure:"JWT_EXPIRATION"`
	// JWTRefreshExpiration is the refresh token lifetime (e.g. "7d").
	JWTRefreshExpiration string `mapstructure:"JWT_REFRESH_EXPIRATION"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTPrivateKey and JWTPublicKey optionally switch access tokens to RS256/ES256 (PEM or file path).
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	JWTPublicKey  string `mapstructure:"JWT_PUBLIC_KEY"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// LockoutThreshold is the number of consecutive failed logins that locks an account.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// LockoutDuration is how long a locked account stays locked (e.g. "30m").
	LockoutDuration string `mapstructure:"LOCKOUT_DURATION"`
	// EmailVerificationTTL is the lifetime of email verification tokens (e.g. "24h").
	EmailVerificationTTL string `mapstructure:"EMAIL_VERIFICATION_TTL"`
	// PasswordResetTTL is the lifetime of password reset tokens (e.g. "1h").
	PasswordResetTTL string `mapstructure:"PASSWORD_RESET_TTL"`
	// RequireVerifiedEmail makes the login policy deny accounts whose email is not verified.
	RequireVerifiedEmail bool `mapstructure:"REQUIRE_VERIFIED_EMAIL"`

	// TwoFactorAppName is the issuer shown by authenticator apps.
	TwoFactorAppName string `mapstructure:"TWO_FACTOR_AUTHENTICATION_APP_NAME"`
	// MFAChallengeTTL is how long a pending second login step stays valid.
	MFAChallengeTTL string `mapstructure:"MFA_CHALLENGE_TTL"`
	// MFAChallengeMaxAttempts is the number of wrong codes allowed per challenge.
	MFAChallengeMaxAttempts int `mapstructure:"MFA_CHALLENGE_MAX_ATTEMPTS"`

	// AppName and AppURL are used in notification templates and links.
	AppName string `mapstructure:"APP_NAME"`
	AppURL  string `mapstructure:"APP_URL"`

	MailHost     string `mapstructure:"MAIL_HOST"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailUser     string `mapstructure:"MAIL_USER"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	TwilioAccountSID  string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `mapstructure:"TWILIO_PHONE_NUMBER"`
	TwilioBaseURL     string `mapstructure:"TWILIO_BASE_URL"`

	// NotifyQueuePrefix prefixes every Redis key used by the notification queue.
	NotifyQueuePrefix string `mapstructure:"NOTIFY_QUEUE_PREFIX"`
	// NotifyMaxAttempts is the number of delivery attempts per notification.
	NotifyMaxAttempts int `mapstructure:"NOTIFY_MAX_ATTEMPTS"`
	// NotifyBackoff is the first retry delay; it doubles on each attempt.
	NotifyBackoff string `mapstructure:"NOTIFY_BACKOFF"`
	// NotifyInlineWorker runs the notification worker inside the API server process.
	NotifyInlineWorker bool `mapstructure:"NOTIFY_INLINE_WORKER"`

	StorageType        string `mapstructure:"STORAGE_TYPE"`
	UploadPath         string `mapstructure:"UPLOAD_PATH"`
	MaxFileSize        int64  `mapstructure:"MAX_FILE_SIZE"`
	AllowedFileTypes   string `mapstructure:"ALLOWED_FILE_TYPES"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	AWSS3Bucket        string `mapstructure:"AWS_S3_BUCKET"`
	AWSS3Endpoint      string `mapstructure:"AWS_S3_ENDPOINT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTel (optional). Empty endpoint means no-op providers.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables the audit stream.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic audit events are published to.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", 3000)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("GRPC_ADDR", ":9091")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("RATE_LIMIT_TTL", 60)
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRATION", "7d")
	v.SetDefault("JWT_ISSUER", "enterprise-api")
	v.SetDefault("JWT_AUDIENCE", "enterprise-api-clients")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("LOCKOUT_DURATION", "30m")
	v.SetDefault("EMAIL_VERIFICATION_TTL", "24h")
	v.SetDefault("PASSWORD_RESET_TTL", "1h")
	v.SetDefault("REQUIRE_VERIFIED_EMAIL", false)
	v.SetDefault("TWO_FACTOR_AUTHENTICATION_APP_NAME", "EnterpriseAPI")
	v.SetDefault("MFA_CHALLENGE_TTL", "5m")
	v.SetDefault("MFA_CHALLENGE_MAX_ATTEMPTS", 5)
	v.SetDefault("APP_NAME", "Enterprise API")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("MAIL_HOST", "")
	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_USER", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_PHONE_NUMBER", "")
	v.SetDefault("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01")
	v.SetDefault("NOTIFY_QUEUE_PREFIX", "notify:")
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", 3)
	v.SetDefault("NOTIFY_BACKOFF", "2s")
	v.SetDefault("NOTIFY_INLINE_WORKER", true)
	v.SetDefault("STORAGE_TYPE", "local")
	v.SetDefault("UPLOAD_PATH", "./uploads")
	v.SetDefault("MAX_FILE_SIZE", 10485760)
	v.SetDefault("ALLOWED_FILE_TYPES", "image/jpeg,image/png,image/gif,application/pdf")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("AWS_S3_BUCKET", "")
	v.SetDefault("AWS_S3_ENDPOINT", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "enterprise-backend-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "audit-events")
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("config: PORT must be between 1 and 65535")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.JWTSecret != "" && c.JWTSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.LockoutThreshold <= 0 {
		return errors.New("config: LOCKOUT_THRESHOLD must be positive")
	}
	for key, val := range map[string]string{
		"JWT_EXPIRATION":         c.JWTExpiration,
		"JWT_REFRESH_EXPIRATION": c.JWTRefreshExpiration,
		"LOCKOUT_DURATION":       c.LockoutDuration,
		"EMAIL_VERIFICATION_TTL": c.EmailVerificationTTL,
		"PASSWORD_RESET_TTL":     c.PasswordResetTTL,
		"MFA_CHALLENGE_TTL":      c.MFAChallengeTTL,
		"NOTIFY_BACKOFF":         c.NotifyBackoff,
	} {
		if _, err := ParseDuration(val); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	switch c.StorageType {
	case "local", "s3":
	default:
		return errors.New("config: STORAGE_TYPE must be local or s3")
	}
	if c.StorageType == "s3" && c.AWSS3Bucket == "" {
		return errors.New("config: AWS_S3_BUCKET must be set when STORAGE_TYPE=s3")
	}
	if c.NotifyMaxAttempts <= 0 {
		c.NotifyMaxAttempts = 3
	}
	if _, err := c.TrustedProxyRanges(); err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}
	return nil
}

// RequireAuthSecrets reports an error unless both signing secrets are set. Called by processes that issue or
// verify tokens; migrate and seed do not need them.
func (c *Config) RequireAuthSecrets() error {
	if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_SECRET and JWT_REFRESH_SECRET must be set")
	}
	return nil
}

// ParseDuration parses a Go duration string, additionally accepting a whole-day suffix ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// AccessTTL parses JWTExpiration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return durationOr(c.JWTExpiration, 15*time.Minute) }

// RefreshTTL parses JWTRefreshExpiration. Returns 7 days if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.JWTRefreshExpiration, 7*24*time.Hour)
}

// LockoutTTL parses LockoutDuration. Returns 30m if unset or invalid.
func (c *Config) LockoutTTL() time.Duration { return durationOr(c.LockoutDuration, 30*time.Minute) }

// VerificationTTL parses EmailVerificationTTL. Returns 24h if unset or invalid.
func (c *Config) VerificationTTL() time.Duration {
	return durationOr(c.EmailVerificationTTL, 24*time.Hour)
}

// ResetTTL parses PasswordResetTTL. Returns 1h if unset or invalid.
func (c *Config) ResetTTL() time.Duration { return durationOr(c.PasswordResetTTL, time.Hour) }

// ChallengeTTL parses MFAChallengeTTL. Returns 5m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration { return durationOr(c.MFAChallengeTTL, 5*time.Minute) }

// NotifyBackoffBase parses NotifyBackoff. Returns 2s if unset or invalid.
func (c *Config) NotifyBackoffBase() time.Duration { return durationOr(c.NotifyBackoff, 2*time.Second) }

// RateLimitWindow returns the rate limit window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	if c.RateLimitTTL <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitTTL) * time.Second
}

// HTTPAddr returns the listen address for the REST API.
func (c *Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.Port) }

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string {
	out := splitList(c.CORSOrigin)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// TrustedProxyRanges parses TrustedProxies. A bare IP is taken as a single-address range.
func (c *Config) TrustedProxyRanges() ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, raw := range splitList(c.TrustedProxies) {
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid address %q", raw)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, ipNet)
	}
	return out, nil
}

// AllowedFileTypesList returns the MIME types accepted by file upload.
func (c *Config) AllowedFileTypesList() []string { return splitList(c.AllowedFileTypes) }

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the audit stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
