package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Open opens (creating if needed) the SQLite database at path. A single
// connection serializes writers so compare-and-swap updates never race.
func Open(ctx context.Context, path string, log zerolog.Logger) (*sql.DB, error) {
	dsn := path
	if !strings.HasPrefix(path, ":memory:") {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("SQLite database opened")
	return db, nil
}

// EnsureSchema creates one document table per collection.
func EnsureSchema(ctx context.Context, db *sql.DB, collections ...string) error {
	for _, c := range collections {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id      TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	data    TEXT NOT NULL
)`, quote(c))
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", c, err)
		}
	}
	return nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// HealthCheck implements ports.HealthChecker for SQLite.
type HealthCheck struct {
	db *sql.DB
}

// NewHealthCheck creates a SQLite health checker.
func NewHealthCheck(db *sql.DB) *HealthCheck {
	return &HealthCheck{db: db}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "sqlite"
}
