// Package config loads the gateway's TOML configuration file, falling
// back to built-in defaults and environment-variable overrides for the
// handful of values (DSNs, secrets) that shouldn't live in a checked-in
// file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Provider ProviderConfig `toml:"provider"`
	Logging  LoggingConfig  `toml:"logging"`
	Admin    AdminConfig    `toml:"admin"`
}

type ServerConfig struct {
	Address string `toml:"address"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `toml:"conn_max_idle_time"`

	ConnectionCacheSize int           `toml:"connection_cache_size"`
	ConnectionCacheTTL  time.Duration `toml:"connection_cache_ttl"`
	AliasCacheSize      int           `toml:"alias_cache_size"`
	AliasCacheTTL       time.Duration `toml:"alias_cache_ttl"`
}

type RedisConfig struct {
	Address      string        `toml:"address"`
	Password     string        `toml:"password"`
	DB           int           `toml:"db"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type ProviderConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
	KiroTokenURL   string        `toml:"kiro_token_url"`
}

type LoggingConfig struct {
	FilePathTemplate string        `toml:"file_path_template"`
	MaxSize          int64         `toml:"max_size"`
	MaxFiles         int           `toml:"max_files"`
	BufferSize       int           `toml:"buffer_size"`
	FlushInterval    time.Duration `toml:"flush_interval"`

	SnapshotsEnabled bool `toml:"snapshots_enabled"`

	S3ArchiveEnabled bool   `toml:"s3_archive_enabled"`
	S3Bucket         string `toml:"s3_bucket"`
	S3Region         string `toml:"s3_region"`
	S3Prefix         string `toml:"s3_prefix"`

	// S3AccessKeyID and S3SecretAccessKey override the default AWS
	// credential chain, for archiving to an S3-compatible store that
	// isn't reachable through IAM (a MinIO bucket, a non-AWS region).
	// Left empty, the default chain (instance role, env vars, shared
	// config) is used instead.
	S3AccessKeyID     string `toml:"s3_access_key_id"`
	S3SecretAccessKey string `toml:"s3_secret_access_key"`
}

// AdminConfig holds the operator session secret. The password hash itself
// lives in the database (domain.Settings), not here — JWTSecret only signs
// the short-lived session token issued after a successful login.
type AdminConfig struct {
	JWTSecret  string        `toml:"jwt_secret"`
	SessionTTL time.Duration `toml:"session_ttl"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Address: ":8080"},
		Database: DatabaseConfig{
			MaxOpenConns:        25,
			MaxIdleConns:        5,
			ConnMaxLifetime:     5 * time.Minute,
			ConnMaxIdleTime:     1 * time.Minute,
			ConnectionCacheSize: 500,
			ConnectionCacheTTL:  1 * time.Minute,
			AliasCacheSize:      500,
			AliasCacheTTL:       5 * time.Minute,
		},
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Provider: ProviderConfig{
			RequestTimeout: 120 * time.Second,
			KiroTokenURL:   "https://oidc.us-east-1.amazonaws.com/token",
		},
		Logging: LoggingConfig{
			FilePathTemplate: "./data/requests-%s.jsonl",
			MaxSize:          10 << 20,
			MaxFiles:         5,
			BufferSize:       100,
			FlushInterval:    60 * time.Second,
			SnapshotsEnabled: true,
		},
		Admin: AdminConfig{
			SessionTTL: 15 * time.Minute,
		},
	}
}

// Load reads path (TOML) over the built-in defaults, then applies the
// RELAYGATE_DATABASE_DSN, RELAYGATE_ADMIN_JWT_SECRET and
// RELAYGATE_S3_SECRET_ACCESS_KEY environment overrides for the three
// secrets operators should not have to commit to disk, and
// ENABLE_REQUEST_LOGS ("true" or "false") over logging.snapshots_enabled.
// A missing file at path is not an error — defaults plus env vars
// are enough to boot against a local Postgres and Redis.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if raw, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if dsn := os.Getenv("RELAYGATE_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := os.Getenv("RELAYGATE_ADMIN_JWT_SECRET"); secret != "" {
		cfg.Admin.JWTSecret = secret
	}
	if key := os.Getenv("RELAYGATE_S3_SECRET_ACCESS_KEY"); key != "" {
		cfg.Logging.S3SecretAccessKey = key
	}
	if v := os.Getenv("ENABLE_REQUEST_LOGS"); v != "" {
		cfg.Logging.SnapshotsEnabled = v == "true"
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("config: database.dsn is required (set it in the TOML file or RELAYGATE_DATABASE_DSN)")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, fmt.Errorf("config: admin.jwt_secret is required (set it in the TOML file or RELAYGATE_ADMIN_JWT_SECRET)")
	}

	return cfg, nil
}
