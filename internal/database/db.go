// Package database provides SQLite connection setup, schema migration and
// maintenance helpers for the durable record store.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// DatabaseProfile selects durability/speed PRAGMAs.
type DatabaseProfile string

const (
	// ProfileCache - Maximum speed, data can always be refetched
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard - Balanced configuration
	ProfileStandard DatabaseProfile = "standard"
)

// DefaultMaxOpenConns bounds concurrent connections when Config leaves it unset.
const DefaultMaxOpenConns = 10

// DB wraps the database connection with production-grade configuration
type DB struct {
	conn         *sql.DB
	path         string
	profile      DatabaseProfile
	name         string // Database name for logging
	maxOpenConns int
	gate         *Gate
}

// Config holds database configuration
type Config struct {
	Path         string
	Profile      DatabaseProfile
	Name         string // Friendly name for logging (e.g., "client_data")
	MaxOpenConns int
}

// New opens the database and verifies it answers a ping.
func New(cfg Config) (*DB, error) {
	// file: URIs are used for in-memory databases and are passed through untouched.
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	configureConnectionPool(conn, cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn:         conn,
		path:         cfg.Path,
		profile:      cfg.Profile,
		name:         cfg.Name,
		maxOpenConns: cfg.MaxOpenConns,
		gate:         NewGate(cfg.MaxOpenConns),
	}, nil
}

// buildConnectionString creates SQLite connection string with profile-specific PRAGMAs
func buildConnectionString(path string, profile DatabaseProfile) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := path + sep + "_pragma=journal_mode(WAL)"

	switch profile {
	case ProfileCache:
		connStr += "&_pragma=synchronous(OFF)"   // No fsync, rows can be refetched
		connStr += "&_pragma=auto_vacuum(FULL)"  // Auto-reclaim space after purges
		connStr += "&_pragma=temp_store(MEMORY)" // Temp tables in RAM

	case ProfileStandard:
		connStr += "&_pragma=synchronous(NORMAL)"      // Fsync at checkpoints
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)" // Gradual space reclamation
		connStr += "&_pragma=temp_store(MEMORY)"
	}

	connStr += "&_pragma=busy_timeout(5000)"
	connStr += "&_pragma=wal_autocheckpoint(1000)" // Checkpoint every 1000 pages
	connStr += "&_pragma=cache_size(-64000)"       // 64MB cache (negative = KB)

	return connStr
}

// configureConnectionPool sets up the shared pool. Callers that must not
// queue beyond the bound guard it themselves with MaxOpenConns().
func configureConnectionPool(conn *sql.DB, maxOpen int) {
	conn.SetMaxOpenConns(maxOpen)
	idle := maxOpen / 2
	if idle < 1 {
		idle = 1
	}
	conn.SetMaxIdleConns(idle)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name for logging
func (db *DB) Name() string {
	return db.name
}

// Profile returns the database profile
func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// MaxOpenConns returns the pool bound.
func (db *DB) MaxOpenConns() int {
	return db.maxOpenConns
}

// Gate returns the admission gate sized to the pool. Repositories built on
// Conn must share it so maintenance queries count against the same bound.
func (db *DB) Gate() *Gate {
	return db.gate
}

func (db *DB) acquire() error {
	if !db.gate.TryAcquire() {
		return fmt.Errorf("%s: %w", db.name, ErrPoolExhausted)
	}
	return nil
}

// Migrate applies the embedded schema for this database name.
// Unknown names are left untouched.
func (db *DB) Migrate() error {
	schemaFiles := map[string]string{
		"client_data": "schemas/client_data_schema.sql",
	}

	schemaFile, ok := schemaFiles[db.name]
	if !ok {
		return nil
	}

	content, err := schemaFS.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", schemaFile, err)
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute schema %s for %s: %w", schemaFile, db.name, err)
		}
		return nil
	})
}

// WithTransaction executes fn within a transaction, rolling back on error
// or panic and committing otherwise.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck pings and runs an integrity check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.acquire(); err != nil {
		return err
	}
	defer db.gate.Release()

	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var integrityResult string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if integrityResult != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, integrityResult)
	}

	return nil
}

// QuickCheck performs a quick health check (just ping, no integrity check)
func (db *DB) QuickCheck(ctx context.Context) error {
	if err := db.acquire(); err != nil {
		return err
	}
	defer db.gate.Release()

	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}
	return nil
}

// CheckpointResult is the outcome of PRAGMA wal_checkpoint.
type CheckpointResult struct {
	Busy         int
	LogFrames    int
	Checkpointed int
}

// WALCheckpoint forces a WAL checkpoint to prevent bloat.
// Modes: PASSIVE, FULL, RESTART, TRUNCATE (default).
func (db *DB) WALCheckpoint(mode string) (CheckpointResult, error) {
	if mode == "" {
		mode = "TRUNCATE"
	}
	switch mode {
	case "PASSIVE", "FULL", "RESTART", "TRUNCATE":
	default:
		return CheckpointResult{}, fmt.Errorf("invalid checkpoint mode %q", mode)
	}

	if err := db.acquire(); err != nil {
		return CheckpointResult{}, err
	}
	defer db.gate.Release()

	var res CheckpointResult
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)
	if err := db.conn.QueryRow(query).Scan(&res.Busy, &res.LogFrames, &res.Checkpointed); err != nil {
		return CheckpointResult{}, fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}

	return res, nil
}

// Stats returns database statistics
type Stats struct {
	SizeBytes     int64 `json:"size_bytes"`
	WALSizeBytes  int64 `json:"wal_size_bytes"`
	PageCount     int64 `json:"page_count"`
	PageSize      int64 `json:"page_size"`
	FreelistCount int64 `json:"freelist_count"`
	OpenConns     int   `json:"open_connections"`
	InUse         int   `json:"in_use"`
}

// GetStats retrieves database statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	if fileInfo, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = fileInfo.Size()
	}
	if fileInfo, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = fileInfo.Size()
	}

	if err := db.acquire(); err != nil {
		return nil, err
	}
	defer db.gate.Release()

	if err := db.conn.QueryRow("PRAGMA page_count").Scan(&stats.PageCount); err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA page_size").Scan(&stats.PageSize); err != nil {
		return nil, fmt.Errorf("failed to get page size: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA freelist_count").Scan(&stats.FreelistCount); err != nil {
		return nil, fmt.Errorf("failed to get freelist count: %w", err)
	}

	poolStats := db.conn.Stats()
	stats.OpenConns = poolStats.OpenConnections
	stats.InUse = poolStats.InUse

	return stats, nil
}
