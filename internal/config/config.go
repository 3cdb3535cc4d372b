package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Multi-file upload policies
const (
	MultiFileLast   = "last"
	MultiFileReject = "reject"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Redis   RedisConfig
	S3      S3Config
	OTEL    OTELConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	MaxUploadSizeMB int64
	// PublicHost overrides the request-derived host prefix, e.g. "https://img.example.com"
	PublicHost string
}

// StorageConfig holds the on-disk layout
type StorageConfig struct {
	WebRoot         string
	TempDir         string // relative to WebRoot
	ContextsDir     string // relative to WebRoot
	OpaqueDir       string // relative to WebRoot
	MultiFilePolicy string
	TempTTL         time.Duration
	SweepInterval   time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr           string
	Password       string
	IdempotencyTTL time.Duration
}

// S3Config holds the optional mirror bucket configuration
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
}

// Enabled reports whether permanent files should be mirrored
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	Endpoint       string // host[:port] of an OTLP/HTTP collector
	URLPathPrefix  string
	Headers        map[string]string // OTEL_HEADERS="Authorization=Basic abc,X-Scope=imgcrop"
	Insecure       bool
	SampleRatio    float64
	MetricInterval time.Duration
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 10),
			PublicHost:      strings.TrimRight(getEnv("PUBLIC_HOST", ""), "/"),
		},
		Storage: StorageConfig{
			WebRoot:         getEnv("WEB_ROOT", "./public"),
			TempDir:         getEnv("TEMP_DIR", "files/temp"),
			ContextsDir:     getEnv("CONTEXTS_DIR", "files/contexts"),
			OpaqueDir:       getEnv("OPAQUE_DIR", "wechat_api_file"),
			MultiFilePolicy: getEnv("MULTI_FILE_POLICY", MultiFileLast),
			TempTTL:         getEnvAsDuration("TEMP_TTL", 24*time.Hour),
			SweepInterval:   getEnvAsDuration("SWEEP_INTERVAL", time.Hour),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 10*time.Minute),
		},
		S3: S3Config{
			Endpoint: getEnv("S3_ENDPOINT", ""),
			Region:   getEnv("S3_REGION", "us-east-1"),
			Bucket:   getEnv("S3_BUCKET", ""),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			URLPathPrefix:  getEnv("OTEL_URL_PATH_PREFIX", ""),
			Headers:        parseHeaders(getEnv("OTEL_HEADERS", "")),
			Insecure:       getEnvAsBool("OTEL_INSECURE", false),
			SampleRatio:    getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
			MetricInterval: getEnvAsDuration("OTEL_METRIC_INTERVAL", time.Minute),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "image-file-server"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive, got %d", c.Server.MaxUploadSizeMB)
	}
	if c.Storage.WebRoot == "" {
		return fmt.Errorf("WEB_ROOT is required")
	}
	dirs := map[string]string{
		"TEMP_DIR":     c.Storage.TempDir,
		"CONTEXTS_DIR": c.Storage.ContextsDir,
		"OPAQUE_DIR":   c.Storage.OpaqueDir,
	}
	for name, dir := range dirs {
		if err := validateRelativeDir(dir); err != nil {
			return fmt.Errorf("%s %w", name, err)
		}
	}
	if c.Storage.TempTTL < 0 || c.Storage.SweepInterval < 0 {
		return fmt.Errorf("TEMP_TTL and SWEEP_INTERVAL must not be negative")
	}
	if c.Storage.MultiFilePolicy != MultiFileLast && c.Storage.MultiFilePolicy != MultiFileReject {
		return fmt.Errorf("MULTI_FILE_POLICY must be %q or %q, got %q", MultiFileLast, MultiFileReject, c.Storage.MultiFilePolicy)
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1, got %v", c.OTEL.SampleRatio)
	}
	if c.OTEL.Enabled && c.OTEL.Endpoint == "" {
		return fmt.Errorf("OTEL_ENDPOINT is required when OTEL_ENABLED is set")
	}
	if c.Server.PublicHost != "" {
		u, err := url.Parse(c.Server.PublicHost)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUBLIC_HOST must be an absolute http(s) URL, got %q", c.Server.PublicHost)
		}
	}
	return nil
}

func validateRelativeDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("is required")
	}
	if filepath.IsAbs(dir) {
		return fmt.Errorf("must be relative to WEB_ROOT, got %q", dir)
	}
	clean := filepath.Clean(dir)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("must stay inside WEB_ROOT, got %q", dir)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// parseHeaders reads "k1=v1,k2=v2"; entries without "=" are ignored
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}
