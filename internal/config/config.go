// Package config loads configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backend types for the uploads namespace.
const (
	BackendAPI = "api"
	BackendS3  = "s3"
)

// Config holds all uploadsfs configuration.
type Config struct {
	// Namespaces
	UploadsRoot    string `yaml:"uploads_root"`
	TempRoot       string `yaml:"temp_root"`
	CreateTempRoot bool   `yaml:"create_temp_root"`

	// Uploads backend ("api" or "s3", default: "api")
	UploadsBackend string `yaml:"uploads_backend"`

	// Files API
	FilesAPIURL            string  `yaml:"files_api_url"`
	FilesSiteID            int     `yaml:"files_site_id"`
	FilesAccessToken       string  `yaml:"files_access_token"`
	FilesRequestsPerSecond float64 `yaml:"files_requests_per_second"` // 0 = unlimited
	RemoteStripPrefix      string  `yaml:"remote_strip_prefix"`
	SpoolDir               string  `yaml:"spool_dir"`

	// S3 storage
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Region    string `yaml:"s3_region"`
	S3KeyPrefix string `yaml:"s3_key_prefix"`

	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// WebDAV basic auth (optional; both must be set to enable)
	DAVUser         string `yaml:"dav_user"`
	DAVPasswordHash string `yaml:"dav_password_hash"` // bcrypt

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		UploadsBackend: BackendAPI,
		S3Region:       "us-east-1",
		ListenAddr:     ":8080",
		MetricsAddr:    ":9090",
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// UPLOADSFS_CONFIG if set, then environment variables. The result is
// validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("UPLOADSFS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.UploadsRoot = envOr("UPLOADS_ROOT", c.UploadsRoot)
	c.TempRoot = envOr("TEMP_ROOT", c.TempRoot)
	c.CreateTempRoot = envBool("CREATE_TEMP_ROOT", c.CreateTempRoot)
	c.UploadsBackend = envOr("UPLOADS_BACKEND", c.UploadsBackend)

	c.FilesAPIURL = envOr("FILES_API_URL", c.FilesAPIURL)
	c.FilesSiteID = envInt("FILES_SITE_ID", c.FilesSiteID)
	c.FilesAccessToken = envOr("FILES_ACCESS_TOKEN", c.FilesAccessToken)
	c.FilesRequestsPerSecond = envFloat("FILES_REQUESTS_PER_SECOND", c.FilesRequestsPerSecond)
	c.RemoteStripPrefix = envOr("REMOTE_STRIP_PREFIX", c.RemoteStripPrefix)
	c.SpoolDir = envOr("SPOOL_DIR", c.SpoolDir)

	c.S3Endpoint = envOr("S3_ENDPOINT", c.S3Endpoint)
	c.S3Bucket = envOr("S3_BUCKET", c.S3Bucket)
	c.S3AccessKey = envOr("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOr("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Region = envOr("S3_REGION", c.S3Region)
	c.S3KeyPrefix = envOr("S3_KEY_PREFIX", c.S3KeyPrefix)

	c.ListenAddr = envOr("LISTEN_ADDR", c.ListenAddr)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)
	c.DAVUser = envOr("DAV_USER", c.DAVUser)
	c.DAVPasswordHash = envOr("DAV_PASSWORD_HASH", c.DAVPasswordHash)

	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.UploadsRoot == "" {
		return fmt.Errorf("UPLOADS_ROOT is required")
	}
	if c.TempRoot == "" {
		return fmt.Errorf("TEMP_ROOT is required")
	}
	if !filepath.IsAbs(c.UploadsRoot) {
		return fmt.Errorf("UPLOADS_ROOT must be absolute, got %q", c.UploadsRoot)
	}
	if !filepath.IsAbs(c.TempRoot) {
		return fmt.Errorf("TEMP_ROOT must be absolute, got %q", c.TempRoot)
	}

	switch c.UploadsBackend {
	case BackendAPI:
		if c.FilesAPIURL == "" {
			return fmt.Errorf("FILES_API_URL is required")
		}
		if c.FilesSiteID <= 0 {
			return fmt.Errorf("FILES_SITE_ID is required")
		}
		if c.FilesAccessToken == "" {
			return fmt.Errorf("FILES_ACCESS_TOKEN is required")
		}
		if c.FilesRequestsPerSecond < 0 {
			return fmt.Errorf("FILES_REQUESTS_PER_SECOND must not be negative")
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
	default:
		return fmt.Errorf("unknown UPLOADS_BACKEND %q (want %q or %q)", c.UploadsBackend, BackendAPI, BackendS3)
	}

	if (c.DAVUser == "") != (c.DAVPasswordHash == "") {
		return fmt.Errorf("DAV_USER and DAV_PASSWORD_HASH must be set together")
	}
	return nil
}

// DAVAuthEnabled reports whether WebDAV basic auth is configured.
func (c *Config) DAVAuthEnabled() bool {
	return c.DAVUser != "" && c.DAVPasswordHash != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
