package drawing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"charting-systemv1/internal/model"
)

const localKeyNamespace = "drawings"

// SQLiteStore is a LocalStore over a small key/value table. Each symbol maps
// to the key "drawings:<SYMBOL>" holding a JSON-encoded drawing array, so the
// cache survives restarts and serves as the remote-sync fallback.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteConfig configures the local drawing store.
type SQLiteConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/drawings.db"
}

// NewSQLiteStore opens (or creates) the database with WAL mode and schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer KV table, one connection is enough.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[drawing] opened local store at %s", cfg.DBPath)
	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drawing_cache (
			key        TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

func localKey(symbol string) string {
	return localKeyNamespace + ":" + strings.ToUpper(symbol)
}

// Load returns the cached drawings for symbol, or an empty slice if the
// symbol has never been saved.
func (s *SQLiteStore) Load(ctx context.Context, symbol string) ([]model.Drawing, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM drawing_cache WHERE key = ?`, localKey(symbol),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load drawings: %w", err)
	}

	var drawings []model.Drawing
	if err := json.Unmarshal([]byte(data), &drawings); err != nil {
		return nil, fmt.Errorf("decode drawings for %s: %w", symbol, err)
	}
	return drawings, nil
}

// Save replaces the cached drawings for symbol.
func (s *SQLiteStore) Save(ctx context.Context, symbol string, drawings []model.Drawing) error {
	if drawings == nil {
		drawings = []model.Drawing{}
	}
	data, err := json.Marshal(drawings)
	if err != nil {
		return fmt.Errorf("encode drawings for %s: %w", symbol, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drawing_cache (key, data, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, localKey(symbol), string(data))
	if err != nil {
		return fmt.Errorf("sqlite save drawings: %w", err)
	}
	return nil
}

// DB returns the underlying sql.DB for health checks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
