package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

// SQLStore keeps every collection in one `documents` table: JSONB bodies on
// PostgreSQL, JSON text on SQLite. Pages are keyset queries on
// (sort key, id) so cursors stay valid while documents are appended.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	now     func() time.Time
}

// NewSQLStore wraps an open connection. The dialect comes from the sqlx
// driver name.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	dialect := database.DialectPostgres
	if db.DriverName() == database.DialectSQLite {
		dialect = database.DialectSQLite
	}
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

type documentRow struct {
	ID      string `db:"id"`
	Seq     int64  `db:"seq"`
	Doc     string `db:"doc"`
	SortKey string `db:"sort_key"`
}

// EnsureTable creates the documents table and its sequence index (idempotent).
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	docType := "JSONB NOT NULL DEFAULT '{}'::jsonb"
	if s.dialect == database.DialectSQLite {
		docType = "TEXT NOT NULL DEFAULT '{}'"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
  collection VARCHAR(64) NOT NULL,
  id VARCHAR(64) NOT NULL,
  seq BIGINT NOT NULL,
  doc ` + docType + `,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (collection, id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents (collection, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure documents table: %w", err)
		}
	}
	return nil
}

// EnsureUnique adds a partial unique expression index so two documents of
// collection cannot share a non-empty value of field.
func (s *SQLStore) EnsureUnique(ctx context.Context, collection, field string) error {
	if err := validName(collection); err != nil {
		return err
	}
	if err := validName(field); err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_%s_%s ON documents ((doc->>'%s')) WHERE collection = '%s' AND doc->>'%s' <> ''`,
		collection, field, field, collection, field)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure unique %s.%s: %w", collection, field, err)
	}
	return nil
}

func (s *SQLStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	if err := validName(collection); err != nil {
		return "", err
	}
	body, err := encodeObject(doc)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	id := utilities.NewDocumentID()
	now := s.now().UnixMilli()
	q := s.db.Rebind(`INSERT INTO documents (collection, id, seq, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, collection, id, utilities.NewSequence(), string(raw), now, now); err != nil {
		return "", s.mapError(err, collection)
	}
	return id, nil
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var row documentRow
	q := s.db.Rebind(`SELECT id, seq, doc, '' AS sort_key FROM documents WHERE collection = ? AND id = ?`)
	if err := s.db.GetContext(ctx, &row, q, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return s.toDocument(row, OrderBy{}, nil), nil
}

func (s *SQLStore) Query(ctx context.Context, collection string, q Query) (*Result, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, err
	}
	sortKey := "''"
	if q.OrderBy.Field != "" {
		sortKey = s.fieldExpr(q.OrderBy.Field)
	}

	var b strings.Builder
	args := []any{collection}
	fmt.Fprintf(&b, `SELECT id, seq, doc, %s AS sort_key FROM documents WHERE collection = ?`, sortKey)
	args = s.appendFilters(&b, args, q.Filters)

	if !q.StartAfter.IsZero() {
		pos, err := q.StartAfter.position(q.OrderBy, q.Filters)
		if err != nil {
			return nil, err
		}
		if q.OrderBy.Field == "" {
			seq, err := strconv.ParseInt(pos.Key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
			}
			b.WriteString(` AND seq > ?`)
			args = append(args, seq)
		} else {
			fmt.Fprintf(&b, ` AND (%s > ? OR (%s = ? AND %s > ?))`, sortKey, sortKey, s.idExpr())
			args = append(args, pos.Key, pos.Key, pos.ID)
		}
	}

	if q.OrderBy.Field == "" {
		b.WriteString(` ORDER BY seq ASC`)
	} else {
		fmt.Fprintf(&b, ` ORDER BY %s ASC, %s ASC`, sortKey, s.idExpr())
	}
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(b.String()), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	res := &Result{Documents: make([]Document, 0, len(rows))}
	for _, row := range rows {
		res.Documents = append(res.Documents, s.toDocument(row, q.OrderBy, q.Filters))
	}
	if n := len(res.Documents); n > 0 {
		res.LastCursor = res.Documents[n-1].Cursor
	}
	return res, nil
}

// Update merges fields into the stored document inside a transaction.
func (s *SQLStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := encodeObject(fields)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sel := `SELECT doc FROM documents WHERE collection = ? AND id = ?`
	if s.dialect == database.DialectPostgres {
		sel += ` FOR UPDATE`
	}
	var current string
	if err := tx.GetContext(ctx, &current, tx.Rebind(sel), collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	body := map[string]any{}
	if err := json.Unmarshal([]byte(current), &body); err != nil {
		return fmt.Errorf("decode stored document %s: %w", id, err)
	}
	for k, v := range patch {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	upd := tx.Rebind(`UPDATE documents SET doc = ?, updated_at = ? WHERE collection = ? AND id = ?`)
	if _, err := tx.ExecContext(ctx, upd, string(raw), s.now().UnixMilli(), collection, id); err != nil {
		return s.mapError(err, collection)
	}
	return tx.Commit()
}

func (s *SQLStore) Count(ctx context.Context, collection string, filters ...Filter) (int, error) {
	if err := validateQuery(collection, Query{Filters: filters}); err != nil {
		return 0, err
	}
	var b strings.Builder
	b.WriteString(`SELECT COUNT(*) FROM documents WHERE collection = ?`)
	args := s.appendFilters(&b, []any{collection}, filters)
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(b.String()), args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *SQLStore) appendFilters(b *strings.Builder, args []any, filters []Filter) []any {
	for _, f := range filters {
		expr := s.fieldExpr(f.Field)
		switch f.Op {
		case OpLte:
			fmt.Fprintf(b, ` AND %s <> '' AND %s <= ?`, expr, expr)
		case OpGte:
			fmt.Fprintf(b, ` AND %s <> '' AND %s >= ?`, expr, expr)
		default:
			fmt.Fprintf(b, ` AND %s = ?`, expr)
		}
		args = append(args, f.Value)
	}
	return args
}

// fieldExpr renders a top-level JSON field as text with byte-order
// comparison on both dialects. SQLite's ->> yields 1/0 for JSON booleans, so
// they are spelled out to match PostgreSQL. field must already be validated.
func (s *SQLStore) fieldExpr(field string) string {
	if s.dialect == database.DialectSQLite {
		return fmt.Sprintf(`(CASE json_type(doc, '$.%s') WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' ELSE COALESCE(CAST(doc->>'%s' AS TEXT), '') END)`, field, field)
	}
	return fmt.Sprintf(`(COALESCE(doc->>'%s', '') COLLATE "C")`, field)
}

func (s *SQLStore) idExpr() string {
	if s.dialect == database.DialectSQLite {
		return `id`
	}
	return `(id COLLATE "C")`
}

func (s *SQLStore) toDocument(row documentRow, o OrderBy, filters []Filter) Document {
	key := strconv.FormatInt(row.Seq, 10)
	if o.Field != "" {
		key = row.SortKey
	}
	return Document{ID: row.ID, Cursor: newCursor(o, filters, key, row.ID), Data: json.RawMessage(row.Doc)}
}

func (s *SQLStore) mapError(err error, collection string) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicate, collection)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
