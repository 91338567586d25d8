package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"uigen/internal/gateway/entity"
	"uigen/internal/util/jsonutil"
)

// dialect captures the SQL differences between Postgres and SQLite.
type dialect struct {
	name      string
	schema    string
	forUpdate string
	// tagMatch is a boolean expression with one LIKE placeholder matching any
	// element of the JSON tags column.
	tagMatch string
	numbered bool
}

// sqlStore keeps each session as a JSON document next to the columns used
// for filtering and ordering.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	schemaOnce sync.Once
	schemaErr  error
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	return &sqlStore{db: db, dialect: d, now: time.Now}
}

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, s.dialect.schema)
	})
	return s.schemaErr
}

// rebind rewrites ? placeholders to $n for dialects that need it.
func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Create(ctx context.Context, sess *entity.Session) (*entity.Session, error) {
	if sess == nil || strings.TrimSpace(sess.ID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	stored := sess.Clone()
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.Revision = 0
	stamp(stored, now)

	args, err := rowArgs(stored)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO component_sessions (id, user_id, title, description, tags, status, revision, last_active_ms, created_ms, updated_ms, document)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), append([]any{stored.ID}, args...)...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return stored, nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*entity.Session, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT document, revision FROM component_sessions WHERE id = ?`), strings.TrimSpace(id))
	return scanSession(row)
}

func (s *sqlStore) Update(ctx context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, s.rebind(`SELECT document, revision FROM component_sessions WHERE id = ?`+s.dialect.forUpdate), id)
	cur, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	expected := cur.Revision

	if err := fn(cur); err != nil {
		return nil, err
	}
	cur.ID = id
	cur.Revision = expected
	stamp(cur, s.now())

	args, err := rowArgs(cur)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, s.rebind(`
UPDATE component_sessions
SET user_id = ?, title = ?, description = ?, tags = ?, status = ?, revision = ?, last_active_ms = ?, created_ms = ?, updated_ms = ?, document = ?
WHERE id = ? AND revision = ?`), append(args, id, expected)...)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *sqlStore) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return ListResult{}, err
	}
	where := []string{"user_id = ?"}
	args := []any{filter.UserID.String()}
	if filter.Status == "" {
		where = append(where, "status <> ?")
		args = append(args, string(entity.SessionDeleted))
	} else {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + escapeLike(term) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR `+s.dialect.tagMatch+`)`)
		args = append(args, like, like, like)
	}
	cond := strings.Join(where, " AND ")

	var out ListResult
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM component_sessions WHERE `+cond), args...).Scan(&out.Total); err != nil {
		return ListResult{}, fmt.Errorf("count sessions: %w", err)
	}

	query := `SELECT document, revision FROM component_sessions WHERE ` + cond + ` ORDER BY last_active_ms DESC, id DESC`
	pageArgs := append([]any{}, args...)
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		pageArgs = append(pageArgs, filter.Limit, max(filter.Offset, 0))
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), pageArgs...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return ListResult{}, err
		}
		out.Sessions = append(out.Sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return out, nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*entity.Session, error) {
	var (
		doc      string
		revision int64
	)
	if err := row.Scan(&doc, &revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var sess entity.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return nil, fmt.Errorf("decode session document: %w", err)
	}
	sess.Revision = revision
	return &sess, nil
}

// rowArgs returns the column values after id, in table order.
func rowArgs(s *entity.Session) ([]any, error) {
	tags, err := jsonutil.MarshalNoEscape(append([]string{}, s.Tags...))
	if err != nil {
		return nil, err
	}
	doc, err := jsonutil.MarshalNoEscape(s)
	if err != nil {
		return nil, fmt.Errorf("encode session document: %w", err)
	}
	return []any{
		s.UserID.String(),
		s.Title,
		s.Description,
		string(tags),
		string(s.Status),
		s.Revision,
		s.Statistics.LastActiveAt.UnixMilli(),
		s.CreatedAt.UnixMilli(),
		s.UpdatedAt.UnixMilli(),
		string(doc),
	}, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
