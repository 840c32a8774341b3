package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Directory DirectoryConfig
	Blob      BlobConfig
	Processor ProcessorConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Sessions  SessionConfig
	CORS      CORSConfig
	Telemetry TelemetryConfig
	Log       LogConfig
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port           string
	BodyLimitBytes int64
	TrustedProxies []string
	LoginRPM       int
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
}

// JWTConfig holds session token settings
type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
	Strict    bool
}

// DirectoryConfig selects and configures the user directory
type DirectoryConfig struct {
	Kind            string // ldap|static
	LDAPURL         string
	LDAPBaseDN      string
	LDAPStartTLS    bool
	LDAPTimeout     time.Duration
	LDAPEmailDomain string
	StaticUsersFile string
}

// BlobConfig configures the snapshot store
type BlobConfig struct {
	Backend               string // azure|minio|none
	AzureConnectionString string
	AzureAccountURL       string
	AzureContainer        string
	S3Endpoint            string
	S3AccessKey           string
	S3SecretKey           string
	S3Bucket              string
	SigningKey            string
	UploadTimeout         time.Duration
}

// ProcessorConfig configures the upstream document-processing service
type ProcessorConfig struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerOpenFor   time.Duration
}

// RedisConfig is optional; empty Addr means in-memory fallbacks
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig is optional; empty URL means the in-process bus
type NATSConfig struct {
	URL string
}

// SessionConfig controls session bookkeeping
type SessionConfig struct {
	Strict    bool
	SweepCron string
}

// CORSConfig lists allowed browser origins (empty allows all)
type CORSConfig struct {
	Origins []string
}

// TelemetryConfig controls OpenTelemetry export
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// LogConfig controls zap output
type LogConfig struct {
	Level  string
	Format string
}

const devJWTSecret = "dev_jwt_secret_123"

// Load reads .env (if present) and the process environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("could not load .env file", zap.Error(err))
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{Env: str("DOCPROC_ENV", "development")}

	var err error
	cfg.Server = ServerConfig{
		Port:           firstOf(os.Getenv("PORT"), os.Getenv("DOCPROC_PORT"), "3001"),
		BodyLimitBytes: int64(intOr("DOCPROC_BODY_LIMIT_MB", 50)) << 20,
		TrustedProxies: list("DOCPROC_TRUSTED_PROXIES"),
		LoginRPM:       intOr("DOCPROC_LOGIN_RPM", 20),
	}

	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		Host:         str("DB_HOST", "localhost"),
		Port:         str("DB_PORT", "5432"),
		User:         str("DB_USER", "docproc"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         str("DB_NAME", "docproc"),
		SSLMode:      str("DB_SSLMODE", "disable"),
		MaxOpenConns: intOr("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: intOr("DB_MAX_IDLE_CONNS", 10),
	}
	if cfg.Database.ConnMaxLifetime, err = duration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Database.DialTimeout, err = duration("DB_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	cfg.JWT = JWTConfig{
		Secret: firstOf(strings.TrimSpace(os.Getenv("JWT_SECRET")), strings.TrimSpace(os.Getenv("DOCPROC_JWT_SECRET"))),
		Strict: boolOr("DOCPROC_STRICT_JWT", cfg.Env == "production"),
	}
	if cfg.JWT.ExpiresIn, err = tokenLifetime("JWT_EXPIRES_IN", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.Directory = DirectoryConfig{
		Kind:            strings.ToLower(str("DOCPROC_DIRECTORY", "ldap")),
		LDAPURL:         str("LDAP_URL", "ldap://localhost:389"),
		LDAPBaseDN:      str("LDAP_BASE_DN", "dc=example,dc=com"),
		LDAPStartTLS:    boolOr("LDAP_STARTTLS", false),
		LDAPEmailDomain: str("DOCPROC_LDAP_EMAIL_DOMAIN", "example.com"),
		StaticUsersFile: os.Getenv("DOCPROC_STATIC_USERS_FILE"),
	}
	if cfg.Directory.LDAPTimeout, err = duration("LDAP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.Blob = BlobConfig{
		Backend:               strings.ToLower(os.Getenv("DOCPROC_BLOB_BACKEND")),
		AzureConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		AzureAccountURL:       os.Getenv("DOCPROC_AZURE_ACCOUNT_URL"),
		AzureContainer:        str("AZURE_STORAGE_CONTAINER", "document-processor"),
		S3Endpoint:            os.Getenv("DOCPROC_S3_ENDPOINT"),
		S3AccessKey:           os.Getenv("DOCPROC_S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("DOCPROC_S3_SECRET_KEY"),
		S3Bucket:              os.Getenv("DOCPROC_S3_BUCKET"),
		SigningKey:            os.Getenv("DOCPROC_SNAPSHOT_SIGNING_KEY"),
	}
	if cfg.Blob.UploadTimeout, err = duration("DOCPROC_BLOB_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Blob.Backend == "" {
		switch {
		case cfg.Blob.AzureConnectionString != "" || cfg.Blob.AzureAccountURL != "":
			cfg.Blob.Backend = "azure"
		case cfg.Blob.S3Endpoint != "":
			cfg.Blob.Backend = "minio"
		default:
			cfg.Blob.Backend = "none"
		}
	}

	cfg.Processor = ProcessorConfig{
		BaseURL:          strings.TrimRight(os.Getenv("DOCPROC_PROCESSOR_URL"), "/"),
		Token:            os.Getenv("DOCPROC_PROCESSOR_TOKEN"),
		BreakerThreshold: intOr("DOCPROC_CB_THRESHOLD", 3),
		BreakerOpenFor:   time.Duration(intOr("DOCPROC_CB_OPEN_SECONDS", 30)) * time.Second,
	}
	if cfg.Processor.Timeout, err = duration("DOCPROC_PROCESSOR_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	cfg.Redis = RedisConfig{
		Addr:     os.Getenv("DOCPROC_REDIS_ADDR"),
		Password: os.Getenv("DOCPROC_REDIS_PASSWORD"),
		DB:       intOr("DOCPROC_REDIS_DB", 0),
	}
	cfg.NATS = NATSConfig{URL: os.Getenv("DOCPROC_NATS_URL")}
	cfg.Sessions = SessionConfig{
		Strict:    boolOr("DOCPROC_SESSION_STRICT", false),
		SweepCron: str("DOCPROC_SESSION_SWEEP_CRON", "*/15 * * * *"),
	}
	cfg.CORS = CORSConfig{Origins: list("DOCPROC_CORS_ORIGINS")}
	cfg.Telemetry = TelemetryConfig{
		Enabled:      boolOr("DOCPROC_OTEL_ENABLE", false) || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		OTLPEndpoint: str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		ServiceName:  str("OTEL_SERVICE_NAME", "docproc-backend"),
	}
	cfg.Log = LogConfig{
		Level:  str("DOCPROC_LOG_LEVEL", "info"),
		Format: str("DOCPROC_LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		if c.JWT.Strict {
			return fmt.Errorf("JWT_SECRET environment variable not set")
		}
		c.JWT.Secret = devJWTSecret
	}
	if c.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	switch c.Directory.Kind {
	case "ldap":
	case "static":
		if c.Directory.StaticUsersFile == "" {
			return fmt.Errorf("DOCPROC_STATIC_USERS_FILE is required for the static directory")
		}
	default:
		return fmt.Errorf("unknown directory %q", c.Directory.Kind)
	}
	switch c.Blob.Backend {
	case "none":
	case "azure":
		if c.Blob.AzureConnectionString == "" && c.Blob.AzureAccountURL == "" {
			return fmt.Errorf("azure blob backend needs AZURE_STORAGE_CONNECTION_STRING or DOCPROC_AZURE_ACCOUNT_URL")
		}
	case "minio":
		if c.Blob.S3Endpoint == "" || c.Blob.S3AccessKey == "" || c.Blob.S3SecretKey == "" || c.Blob.S3Bucket == "" {
			return fmt.Errorf("minio configuration incomplete")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.Blob.Backend)
	}
	if c.Server.BodyLimitBytes <= 0 {
		return fmt.Errorf("DOCPROC_BODY_LIMIT_MB must be positive")
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from DB_* parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// tokenLifetime accepts Go durations plus the forms token expiry settings
// usually carry: bare seconds ("3600") and days ("7d").
func tokenLifetime(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(v, "d"); ok {
		if n, err := strconv.ParseFloat(days, 64); err == nil {
			return time.Duration(n * float64(24*time.Hour)), nil
		}
	}
	return duration(key, def)
}

func list(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
