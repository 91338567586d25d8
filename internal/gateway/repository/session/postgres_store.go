package session

import (
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS component_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL,
    revision BIGINT NOT NULL,
    last_active_ms BIGINT NOT NULL,
    created_ms BIGINT NOT NULL,
    updated_ms BIGINT NOT NULL,
    document TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_component_sessions_user ON component_sessions(user_id, status, last_active_ms DESC);
`

// PostgresStore serializes concurrent updates of one session with
// SELECT ... FOR UPDATE and additionally guards the write on the revision.
type PostgresStore struct {
	*sqlStore
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore: newSQLStore(db, dialect{
		name:      "postgres",
		schema:    postgresSchema,
		forUpdate: " FOR UPDATE",
		tagMatch:  `EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags::jsonb) AS t(tag) WHERE LOWER(t.tag) LIKE ? ESCAPE '\')`,
		numbered:  true,
	})}
}

// OpenPostgres opens and pings a pgx-backed database.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStore(db), nil
}
