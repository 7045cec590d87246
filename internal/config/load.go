// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// ConfigFlag names the flag that points at the YAML file.
const ConfigFlag = "config"

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":                "http.addr",
	"cors-origins":             "http.cors_origins",
	"max-upload-bytes":         "http.max_upload_bytes",
	"metrics-addr":             "metrics.addr",
	"database-url":             "database.url",
	"database-connect-timeout": "database.connect_timeout",
	"auto-migrate":             "database.auto_migrate",
	"s3-endpoint":              "s3.endpoint",
	"s3-region":                "s3.region",
	"s3-bucket":                "s3.bucket",
	"hash-workers":             "auth.hash_workers",
	"login-rate":               "auth.login_rate",
	"login-burst":              "auth.login_burst",
	"log-format":               "log.format",
	"log-level":                "log.level",
}

// RegisterFlags adds the configuration flags, with their defaults, to fs.
// S3 credentials have no flag; they come from the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(ConfigFlag, "", "path to a YAML configuration file (default: $XDG_CONFIG_HOME/creatorhub/config.yaml when present)")
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.StringSlice("cors-origins", nil, "allowed CORS origins (glob patterns)")
	fs.Int64("max-upload-bytes", DefaultMaxUploadBytes, "maximum multipart request size")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "Postgres connection URL")
	fs.Duration("database-connect-timeout", DefaultConnectTimeout, "how long to retry the initial database connection")
	fs.Bool("auto-migrate", true, "apply pending migrations on startup")
	fs.String("s3-endpoint", "", "S3 endpoint URL (empty = AWS default)")
	fs.String("s3-region", DefaultS3Region, "S3 region")
	fs.String("s3-bucket", "", "S3 bucket for profile pictures")
	fs.Int("hash-workers", 0, "concurrent password hash operations (0 = GOMAXPROCS)")
	fs.Float64("login-rate", DefaultLoginRate, "sign-in attempts per second per client")
	fs.Int("login-burst", DefaultLoginBurst, "sign-in burst per client")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
}

// environment lists the variables read on top of the file. Names without a
// prefix are kept for deployments that predate the CREATORHUB_ namespace.
type environment struct {
	HostURI        *string        `env:"HOST_URI"`
	HTTPAddr       *string        `env:"CREATORHUB_HTTP_ADDR"`
	CORSOrigins    []string       `env:"CREATORHUB_CORS_ORIGINS" envSeparator:","`
	MaxUploadBytes *int64         `env:"CREATORHUB_MAX_UPLOAD_BYTES"`
	MetricsAddr    *string        `env:"CREATORHUB_METRICS_ADDR"`
	DBURI          *string        `env:"DB_URI"`
	DatabaseURL    *string        `env:"DATABASE_URL"`
	ConnectTimeout *time.Duration `env:"CREATORHUB_DATABASE_CONNECT_TIMEOUT"`
	AutoMigrate    *bool          `env:"CREATORHUB_AUTO_MIGRATE"`
	S3Endpoint     *string        `env:"S3_ENDPOINT"`
	S3Region       *string        `env:"S3_REGION"`
	S3Bucket       *string        `env:"S3_BUCKET_NAME"`
	S3AccessKey    *string        `env:"S3_ACCESS_KEY"`
	S3SecretKey    *string        `env:"S3_SECRET_KEY"`
	HashWorkers    *int           `env:"CREATORHUB_HASH_WORKERS"`
	LoginRate      *float64       `env:"CREATORHUB_LOGIN_RATE"`
	LoginBurst     *int           `env:"CREATORHUB_LOGIN_BURST"`
	LogFormat      *string        `env:"CREATORHUB_LOG_FORMAT"`
	LogLevel       *string        `env:"CREATORHUB_LOG_LEVEL"`
}

// values returns the keys whose variables were set. DATABASE_URL wins over DB_URI.
func (e *environment) values() map[string]any {
	out := map[string]any{}
	put := func(key string, set bool, v any) {
		if set {
			out[key] = v
		}
	}
	put("http.addr", e.HostURI != nil, deref(e.HostURI))
	put("http.addr", e.HTTPAddr != nil, deref(e.HTTPAddr))
	put("http.cors_origins", len(e.CORSOrigins) > 0, e.CORSOrigins)
	put("http.max_upload_bytes", e.MaxUploadBytes != nil, deref(e.MaxUploadBytes))
	put("metrics.addr", e.MetricsAddr != nil, deref(e.MetricsAddr))
	put("database.url", e.DBURI != nil, deref(e.DBURI))
	put("database.url", e.DatabaseURL != nil, deref(e.DatabaseURL))
	put("database.connect_timeout", e.ConnectTimeout != nil, deref(e.ConnectTimeout))
	put("database.auto_migrate", e.AutoMigrate != nil, deref(e.AutoMigrate))
	put("s3.endpoint", e.S3Endpoint != nil, deref(e.S3Endpoint))
	put("s3.region", e.S3Region != nil, deref(e.S3Region))
	put("s3.bucket", e.S3Bucket != nil, deref(e.S3Bucket))
	put("s3.access_key", e.S3AccessKey != nil, deref(e.S3AccessKey))
	put("s3.secret_key", e.S3SecretKey != nil, deref(e.S3SecretKey))
	put("auth.hash_workers", e.HashWorkers != nil, deref(e.HashWorkers))
	put("auth.login_rate", e.LoginRate != nil, deref(e.LoginRate))
	put("auth.login_burst", e.LoginBurst != nil, deref(e.LoginBurst))
	put("log.format", e.LogFormat != nil, deref(e.LogFormat))
	put("log.level", e.LogLevel != nil, deref(e.LogLevel))
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Options tune Load. Zero values read the real process environment.
type Options struct {
	// EnvFiles are dotenv files loaded into the process environment. Missing
	// files are skipped. Nil means ".env".
	EnvFiles []string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load builds a Config from fs, which must carry the flags added by
// RegisterFlags and must already be parsed.
func Load(fs *pflag.FlagSet, opts Options) (*Config, error) {
	k := koanf.New(".")

	explicit, err := fs.GetString(ConfigFlag)
	if err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}
	if path := configPath(explicit, opts.getenv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}
	var vars environment
	if err := env.ParseWithOptions(&vars, env.Options{Environment: opts.Environment}); err != nil {
		return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}
	for key, value := range vars.values() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_ENV_INVALID").With("key", key).Wrap(err)
		}
	}

	// Passing k makes unchanged flags fill only keys no earlier layer set.
	flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(flags, nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

func loadEnvFiles(paths []string) error {
	if paths == nil {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return oops.Code("CONFIG_ENV_FILE_INVALID").With("path", p).Wrap(err)
		}
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.S3.SecretKey != "" {
		c.S3.SecretKey = "REDACTED"
	}
	if i := strings.Index(c.Database.URL, "@"); i > 0 {
		if j := strings.Index(c.Database.URL, "://"); j > 0 && j < i {
			c.Database.URL = c.Database.URL[:j+3] + "REDACTED" + c.Database.URL[i:]
		}
	}
	c.HTTP.CORSOrigins = append([]string(nil), c.HTTP.CORSOrigins...)
	return c
}
