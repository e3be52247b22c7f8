package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      storage.Config      `yaml:"database"`
	Redis         storage.RedisConfig `yaml:"redis"`
	Media         MediaConfig         `yaml:"media"`
	Auth          AuthConfig          `yaml:"auth"`
	Cache         CacheConfig         `yaml:"cache"`
	Janitor       JanitorConfig       `yaml:"janitor"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	RunMigrations   bool          `yaml:"run_migrations"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// MediaConfig points image uploads at an S3-compatible bucket
type MediaConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	UsePathStyle   bool   `yaml:"use_path_style"`
	PublicBaseURL  string `yaml:"public_base_url"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// AuthConfig holds session and credential settings
type AuthConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	LoginAttempts int           `yaml:"login_attempts"`
	LoginWindow   time.Duration `yaml:"login_window"`
}

// CacheConfig sizes the university cache
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// JanitorConfig schedules the maintenance jobs (cron syntax)
type JanitorConfig struct {
	SessionCleanupSchedule string        `yaml:"session_cleanup_schedule"`
	AuditCleanupSchedule   string        `yaml:"audit_cleanup_schedule"`
	AuditRetention         time.Duration `yaml:"audit_retention"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the configured log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			HealthPort:      "9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
			MaxBodyBytes:    1 << 20,
			RunMigrations:   true,
		},
		Database: storage.DefaultConfig(),
		Media: MediaConfig{
			Region:         "us-east-1",
			Bucket:         "campus-media",
			MaxUploadBytes: 5 << 20,
		},
		Auth: AuthConfig{
			SessionTTL:    7 * 24 * time.Hour,
			BcryptCost:    bcrypt.DefaultCost,
			LoginAttempts: 10,
			LoginWindow:   time.Minute,
		},
		Cache: CacheConfig{
			MaxEntries: 1024,
			TTL:        5 * time.Minute,
		},
		Janitor: JanitorConfig{
			SessionCleanupSchedule: "*/15 * * * *",
			AuditCleanupSchedule:   "0 3 * * *",
			AuditRetention:         90 * 24 * time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "campus",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// CAMPUS_CONFIG_FILE (if any) and CAMPUS_* environment overrides, then
// validates it
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CAMPUS_CONFIG_FILE"))
}

// Load is LoadConfig with an explicit file path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("CAMPUS_HOST", s.Host)
	s.Port = getEnv("CAMPUS_PORT", s.Port)
	s.HealthPort = getEnv("CAMPUS_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("CAMPUS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("CAMPUS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("CAMPUS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("CAMPUS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.AllowedOrigins = getEnvList("CAMPUS_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.MaxBodyBytes = getEnvInt64("CAMPUS_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.RunMigrations = getEnvBool("CAMPUS_RUN_MIGRATIONS", s.RunMigrations)

	db := &c.Database
	db.Driver = storage.Dialect(getEnv("CAMPUS_DB_DRIVER", string(db.Driver)))
	db.URL = getEnv("CAMPUS_DB_URL", db.URL)
	db.ReplicaURLs = getEnvList("CAMPUS_DB_REPLICA_URLS", db.ReplicaURLs)
	db.MaxConns = getEnvInt("CAMPUS_DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvInt("CAMPUS_DB_MIN_CONNS", db.MinConns)
	db.Timeout = getEnvDuration("CAMPUS_DB_TIMEOUT", db.Timeout)

	r := &c.Redis
	r.URL = getEnv("CAMPUS_REDIS_URL", r.URL)
	r.Password = getEnv("CAMPUS_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("CAMPUS_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("CAMPUS_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("CAMPUS_REDIS_POOL_SIZE", r.PoolSize)

	m := &c.Media
	m.Enabled = getEnvBool("CAMPUS_MEDIA_ENABLED", m.Enabled)
	m.Endpoint = getEnv("CAMPUS_S3_ENDPOINT", m.Endpoint)
	m.Region = getEnv("CAMPUS_S3_REGION", m.Region)
	m.Bucket = getEnv("CAMPUS_S3_BUCKET", m.Bucket)
	m.AccessKey = getEnv("CAMPUS_S3_ACCESS_KEY", m.AccessKey)
	m.SecretKey = getEnv("CAMPUS_S3_SECRET_KEY", m.SecretKey)
	m.UsePathStyle = getEnvBool("CAMPUS_S3_USE_PATH_STYLE", m.UsePathStyle)
	m.PublicBaseURL = getEnv("CAMPUS_MEDIA_PUBLIC_BASE_URL", m.PublicBaseURL)
	m.MaxUploadBytes = getEnvInt64("CAMPUS_MEDIA_MAX_UPLOAD_BYTES", m.MaxUploadBytes)

	a := &c.Auth
	a.SessionTTL = getEnvDuration("CAMPUS_SESSION_TTL", a.SessionTTL)
	a.BcryptCost = getEnvInt("CAMPUS_BCRYPT_COST", a.BcryptCost)
	a.LoginAttempts = getEnvInt("CAMPUS_LOGIN_ATTEMPTS", a.LoginAttempts)
	a.LoginWindow = getEnvDuration("CAMPUS_LOGIN_WINDOW", a.LoginWindow)

	c.Cache.MaxEntries = getEnvInt("CAMPUS_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)
	c.Cache.TTL = getEnvDuration("CAMPUS_CACHE_TTL", c.Cache.TTL)

	j := &c.Janitor
	j.SessionCleanupSchedule = getEnv("CAMPUS_JANITOR_SESSION_SCHEDULE", j.SessionCleanupSchedule)
	j.AuditCleanupSchedule = getEnv("CAMPUS_JANITOR_AUDIT_SCHEDULE", j.AuditCleanupSchedule)
	j.AuditRetention = getEnvDuration("CAMPUS_AUDIT_RETENTION", j.AuditRetention)

	o := &c.Observability
	o.LogLevel = getEnv("CAMPUS_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("CAMPUS_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("CAMPUS_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("CAMPUS_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("CAMPUS_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("CAMPUS_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("CAMPUS_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("CAMPUS_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case storage.DialectPostgres, storage.DialectSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Database.Driver == storage.DialectSQLite && len(c.Database.ReplicaURLs) > 0 {
		return fmt.Errorf("read replicas require the postgres driver")
	}

	if c.Media.Enabled && c.Media.Bucket == "" {
		return fmt.Errorf("media bucket is required when media is enabled")
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.LoginAttempts <= 0 || c.Auth.LoginWindow <= 0 {
		return fmt.Errorf("login rate limit must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
