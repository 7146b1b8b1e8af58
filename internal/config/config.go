package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded at startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Cartesia CartesiaConfig
	Blob     BlobConfig
	Poll     PollConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for hosted-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CartesiaConfig carries the voice vendor credentials.
// APIKey and AgentID are deploy-time requirements: a request that needs them
// and finds them absent is a 500, never a silent default.
type CartesiaConfig struct {
	APIKey  string
	AgentID string

	// APIBaseURL serves call-detail lookups; AgentsBaseURL serves outbound
	// dialing and audio download. Cartesia runs these on separate hosts.
	APIBaseURL    string
	AgentsBaseURL string

	// Version is the Cartesia-Version header value.
	Version string
}

// BlobConfig selects where call recordings are stored.
type BlobConfig struct {
	// Kind is "local" or "minio".
	Kind string

	LocalRoot string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// PollConfig tunes the server-side call poll supervisor and the
// reconciliation sweep.
type PollConfig struct {
	// Interval between status refreshes for an in-progress call.
	Interval time.Duration

	// ReconcileSpec is a cron spec for the staleness sweep.
	ReconcileSpec string

	// StaleAfter is how long a task may sit in_progress before the sweep
	// re-checks it against vendor truth.
	StaleAfter time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Cartesia.APIKey = os.Getenv("CARTESIA_API_KEY")
	c.Cartesia.AgentID = strings.TrimSpace(os.Getenv("CARTESIA_AGENT_ID"))
	c.Cartesia.APIBaseURL = strings.TrimSpace(os.Getenv("CARTESIA_API_BASE_URL"))
	c.Cartesia.AgentsBaseURL = strings.TrimSpace(os.Getenv("CARTESIA_AGENTS_BASE_URL"))
	c.Cartesia.Version = strings.TrimSpace(os.Getenv("CARTESIA_VERSION"))

	c.Blob.Kind = strings.TrimSpace(os.Getenv("BLOB_KIND"))
	c.Blob.LocalRoot = strings.TrimSpace(os.Getenv("BLOB_LOCAL_ROOT"))
	c.Blob.MinioEndpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	c.Blob.MinioAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	c.Blob.MinioSecretKey = os.Getenv("MINIO_SECRET_KEY")
	c.Blob.MinioBucket = strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	c.Blob.MinioUseSSL = strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")

	c.Poll.Interval = mustDuration("POLL_INTERVAL")
	c.Poll.ReconcileSpec = strings.TrimSpace(os.Getenv("RECONCILE_SPEC"))
	c.Poll.StaleAfter = mustDuration("RECONCILE_STALE_AFTER")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Cartesia.APIKey == "" {
		errs = append(errs, errors.New("CARTESIA_API_KEY is required"))
	}
	if c.Cartesia.AgentID == "" {
		errs = append(errs, errors.New("CARTESIA_AGENT_ID is required"))
	}
	if c.Cartesia.APIBaseURL == "" {
		c.Cartesia.APIBaseURL = "https://api.cartesia.ai"
	}
	if c.Cartesia.AgentsBaseURL == "" {
		c.Cartesia.AgentsBaseURL = "https://agents-preview.cartesia.ai"
	}
	if c.Cartesia.Version == "" {
		c.Cartesia.Version = "2025-04-16"
	}

	switch c.Blob.Kind {
	case "":
		c.Blob.Kind = "local"
	case "local", "minio":
	default:
		errs = append(errs, fmt.Errorf("BLOB_KIND must be local or minio, got %q", c.Blob.Kind))
	}
	if c.Blob.Kind == "local" && c.Blob.LocalRoot == "" {
		c.Blob.LocalRoot = "./data/recordings"
	}
	if c.Blob.Kind == "minio" {
		if c.Blob.MinioEndpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT is required when BLOB_KIND=minio"))
		}
		if c.Blob.MinioAccessKey == "" || c.Blob.MinioSecretKey == "" {
			errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when BLOB_KIND=minio"))
		}
		if c.Blob.MinioBucket == "" {
			errs = append(errs, errors.New("MINIO_BUCKET is required when BLOB_KIND=minio"))
		}
	}

	if c.Poll.Interval <= 0 {
		// Matches the dashboard refresh cadence for in-progress calls.
		c.Poll.Interval = 8 * time.Second
	}
	if c.Poll.ReconcileSpec == "" {
		c.Poll.ReconcileSpec = "@every 5m"
	}
	if c.Poll.StaleAfter <= 0 {
		c.Poll.StaleAfter = 10 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
