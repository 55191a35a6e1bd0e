package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection and the read-through caches that sit in
// front of the connection and alias repositories.
type DB struct {
	conn *sqlx.DB

	connectionCache *LRUCache
	aliasCache      *LRUCache
}

// DBConfig holds database configuration. Connection parameters collapse
// to a single DSN string.
type DBConfig struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	QueryTimeout time.Duration

	ConnectionCacheSize int
	ConnectionCacheTTL  time.Duration
	AliasCacheSize      int
	AliasCacheTTL       time.Duration
}

func DefaultDBConfig() DBConfig {
	return DBConfig{
		DSN: "host=localhost port=5432 dbname=relaygate user=postgres sslmode=disable",

		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		QueryTimeout: 5 * time.Second,

		ConnectionCacheSize: 1000,
		ConnectionCacheTTL:  30 * time.Second,
		AliasCacheSize:      500,
		AliasCacheTTL:       5 * time.Minute,
	}
}

func NewDB(cfg DBConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{
		conn:            conn,
		connectionCache: NewLRUCache(cfg.ConnectionCacheSize, cfg.ConnectionCacheTTL),
		aliasCache:      NewLRUCache(cfg.AliasCacheSize, cfg.AliasCacheTTL),
	}, nil
}

func (db *DB) Close() error {
	db.connectionCache.Clear()
	db.aliasCache.Clear()
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("storage: ping failed: %w", err)
	}
	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("storage: health check query failed: %w", err)
	}
	return nil
}

type DBStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxLifetimeClosed  int64

	ConnectionCacheStats CacheStats
	AliasCacheStats      CacheStats
}

func (db *DB) GetStats() DBStats {
	stats := db.conn.Stats()
	return DBStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,

		ConnectionCacheStats: db.connectionCache.GetStats(),
		AliasCacheStats:      db.aliasCache.GetStats(),
	}
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return db.conn.BeginTxx(ctx, opts)
}

// Conn returns the underlying sqlx connection for queries not covered by a
// repository.
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

func (db *DB) ConnectionCache() *LRUCache { return db.connectionCache }
func (db *DB) AliasCache() *LRUCache      { return db.aliasCache }

// CleanupExpiredCacheEntries removes expired entries from all caches;
// called periodically from a background sweep.
func (db *DB) CleanupExpiredCacheEntries() (connectionsRemoved, aliasesRemoved int) {
	connectionsRemoved = db.connectionCache.CleanupExpired()
	aliasesRemoved = db.aliasCache.CleanupExpired()
	return
}

func (db *DB) NewConnectionRepository() *ConnectionRepository { return NewConnectionRepository(db) }
func (db *DB) NewAliasRepository() *AliasRepository           { return NewAliasRepository(db) }
func (db *DB) NewComboRepository() *ComboRepository           { return NewComboRepository(db) }
func (db *DB) NewPricingRepository() *PricingRepository       { return NewPricingRepository(db) }
func (db *DB) NewSettingsRepository() *SettingsRepository     { return NewSettingsRepository(db) }
func (db *DB) NewProviderRepository() *ProviderRepository     { return NewProviderRepository(db) }
