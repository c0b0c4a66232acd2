// Package repository persists extracted receipts in SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/receiptscan/receiptscan/internal/common"
)

type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory
	// database, used by tests.
	Path        string
	BusyTimeout time.Duration
}

const schemaReceipts = `
CREATE TABLE IF NOT EXISTS receipts (
	id             TEXT PRIMARY KEY,
	vendor         TEXT NOT NULL,
	tx_date        DATETIME NOT NULL,
	amount         REAL NOT NULL CHECK(amount > 0),
	category       TEXT NOT NULL,
	currency       TEXT NOT NULL DEFAULT 'USD',
	source_file    TEXT NOT NULL,
	extracted_text TEXT,
	confidence     REAL NOT NULL DEFAULT 0.0 CHECK(confidence >= 0.0 AND confidence <= 1.0),
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
)`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_receipts_vendor ON receipts(vendor)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_tx_date ON receipts(tx_date)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_amount ON receipts(amount)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_category ON receipts(category)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_currency ON receipts(currency)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_confidence ON receipts(confidence)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_created_at ON receipts(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_vendor_date ON receipts(vendor, tx_date)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_category_date ON receipts(category, tx_date)`,
}

// Open connects to the SQLite database and applies the connection pragmas.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "receipts.db"
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 30 * time.Second
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, common.NewAppError("DB_OPEN",
					fmt.Sprintf("could not create database directory %q", dir), err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	logger.Info("opening database", "path", cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.NewAppError("DB_OPEN", "could not open database", err)
	}
	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY and keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.NewAppError("DB_OPEN", "database ping failed", err)
	}
	return db, nil
}

// Migrate creates the receipts table and its indexes. Safe to run on every
// startup.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stmts := append([]string{schemaReceipts}, schemaIndexes...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("schema migration failed", "error", err)
			return common.NewAppError("DB_MIGRATE", "schema migration failed", err)
		}
	}
	logger.Info("database schema ready")
	return nil
}

// Close closes the database gracefully.
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
		return
	}
	logger.Info("database closed")
}
