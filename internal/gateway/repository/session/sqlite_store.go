package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS component_sessions (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    tags           TEXT NOT NULL DEFAULT '[]',
    status         TEXT NOT NULL,
    revision       INTEGER NOT NULL,
    last_active_ms INTEGER NOT NULL,
    created_ms     INTEGER NOT NULL,
    updated_ms     INTEGER NOT NULL,
    document       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_component_sessions_user ON component_sessions(user_id, status, last_active_ms DESC);
`

// SQLiteStore is the single-node store. Writes are serialized by SQLite
// itself and guarded on the revision column.
type SQLiteStore struct {
	*sqlStore
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqlStore: newSQLStore(db, dialect{
		name:     "sqlite",
		schema:   sqliteSchema,
		tagMatch: `EXISTS (SELECT 1 FROM json_each(tags) WHERE LOWER(json_each.value) LIKE ? ESCAPE '\')`,
	})}
}

// OpenSQLite opens or creates a database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; avoids SQLITE_BUSY on concurrent transactions.
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(db), nil
}
