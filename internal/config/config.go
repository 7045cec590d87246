// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

// Package config loads Creatorhub configuration from flags, a YAML file and
// the environment.
//
// Precedence, lowest first: flag defaults, the YAML file, environment
// variables (including a .env file), flags set on the command line. The YAML
// file is the --config path, or $XDG_CONFIG_HOME/creatorhub/config.yaml when
// that exists.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/creatorhub/creatorhub/internal/logging"
)

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Metrics  Metrics  `koanf:"metrics"`
	Database Database `koanf:"database"`
	S3       S3       `koanf:"s3"`
	Auth     Auth     `koanf:"auth"`
	Log      Log      `koanf:"log"`
}

// HTTP configures the API listener.
type HTTP struct {
	Addr           string   `koanf:"addr"`
	CORSOrigins    []string `koanf:"cors_origins"`
	MaxUploadBytes int64    `koanf:"max_upload_bytes"`
}

// Metrics configures the observability listener. An empty Addr disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Database configures the Postgres pool.
type Database struct {
	URL            string        `koanf:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// S3 configures the picture bucket. An empty Endpoint uses the AWS default resolver.
type S3 struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

// Auth configures password hashing and sign-in throttling.
type Auth struct {
	// HashWorkers bounds concurrent hash operations; 0 means GOMAXPROCS.
	HashWorkers int     `koanf:"hash_workers"`
	LoginRate   float64 `koanf:"login_rate"`
	LoginBurst  int     `koanf:"login_burst"`
}

// Log configures the process logger.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default values.
const (
	DefaultHTTPAddr       = "127.0.0.1:8080"
	DefaultMetricsAddr    = "127.0.0.1:9100"
	DefaultMaxUploadBytes = 8 << 20
	DefaultConnectTimeout = 30 * time.Second
	DefaultS3Region       = "us-east-1"
	DefaultLoginRate      = 1.0
	DefaultLoginBurst     = 5
	DefaultLogFormat      = "json"
	DefaultLogLevel       = "info"
)

// Validate reports every invalid key, not just the first.
func (c *Config) Validate() error {
	var problems []string
	add := func(key, format string, args ...any) {
		problems = append(problems, key+": "+fmt.Sprintf(format, args...))
	}

	if c.HTTP.Addr == "" {
		add("http.addr", "is required")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		add("http.max_upload_bytes", "must be positive, got %d", c.HTTP.MaxUploadBytes)
	}
	for _, origin := range c.HTTP.CORSOrigins {
		if _, err := glob.Compile(origin); err != nil {
			add("http.cors_origins", "invalid pattern %q", origin)
		}
	}
	if problem := c.validateDatabase(); problem != "" {
		add("database.url", "%s", problem)
	}
	if c.Database.ConnectTimeout <= 0 {
		add("database.connect_timeout", "must be positive, got %s", c.Database.ConnectTimeout)
	}
	if c.S3.Bucket == "" {
		add("s3.bucket", "is required")
	}
	if c.S3.Region == "" {
		add("s3.region", "is required")
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		add("s3.access_key", "access_key and secret_key must be set together")
	}
	if c.Auth.HashWorkers < 0 {
		add("auth.hash_workers", "must not be negative, got %d", c.Auth.HashWorkers)
	}
	if c.Auth.LoginRate <= 0 {
		add("auth.login_rate", "must be positive, got %v", c.Auth.LoginRate)
	}
	if c.Auth.LoginBurst < 1 {
		add("auth.login_burst", "must be at least 1, got %d", c.Auth.LoginBurst)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		add("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "unknown level %q", c.Log.Level)
	}

	if len(problems) == 0 {
		return nil
	}
	return oops.Code("CONFIG_INVALID").
		With("problems", problems).
		Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// ValidateDatabase checks only the keys a migration run needs.
func (c *Config) ValidateDatabase() error {
	if problem := c.validateDatabase(); problem != "" {
		return oops.Code("CONFIG_INVALID").
			With("problems", []string{"database.url: " + problem}).
			Errorf("invalid configuration: database.url: %s", problem)
	}
	return nil
}

func (c *Config) validateDatabase() string {
	switch {
	case c.Database.URL == "":
		return "is required"
	case !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://"):
		return "must be a postgres:// URL"
	}
	return ""
}
