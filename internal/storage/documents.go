package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
)

// TimeLayout is the fixed width UTC layout timestamps are stored with, so
// that lexical order in SQLite equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

const maxTxAttempts = 5

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DocumentStore implements docstore.Store on a single SQLite table holding
// JSON documents keyed by (collection, id).
type DocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ docstore.Store = (*DocumentStore)(nil)

// NewDocumentStore creates a DocumentStore. Migrate must have been run on db.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db, now: time.Now}
}

// Close closes the underlying database.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDoc(ctx context.Context, q querier, ref docstore.Ref) (*docstore.Snapshot, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidRef, ref.Path())
	}
	var raw string
	err := q.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		ref.Collection, ref.ID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &docstore.Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", ref.Path(), err)
	}
	data, err := unmarshalDoc(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", ref.Path(), err)
	}
	return &docstore.Snapshot{Ref: ref, Data: data}, nil
}

// Get reads a single document.
func (s *DocumentStore) Get(ctx context.Context, ref docstore.Ref) (*docstore.Snapshot, error) {
	return getDoc(ctx, s.db, ref)
}

// GetAll reads documents one by one; SQLite reads are local so there is
// nothing to batch.
func (s *DocumentStore) GetAll(ctx context.Context, refs []docstore.Ref) ([]*docstore.Snapshot, error) {
	out := make([]*docstore.Snapshot, 0, len(refs))
	for _, ref := range refs {
		snap, err := getDoc(ctx, s.db, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Set replaces a document.
func (s *DocumentStore) Set(ctx context.Context, ref docstore.Ref, data map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Set(ref, data)
	})
}

// Merge merges fields into a document.
func (s *DocumentStore) Merge(ctx context.Context, ref docstore.Ref, data map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Merge(ref, data)
	})
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, ref docstore.Ref) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Delete(ref)
	})
}

// Query runs an equality-filtered, ordered, limited query over one collection.
// Documents missing the order field are excluded, matching Firestore.
func (s *DocumentStore) Query(ctx context.Context, q docstore.Query) ([]*docstore.Snapshot, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("%w: empty collection", docstore.ErrInvalidRef)
	}

	var (
		where = []string{"collection = ?"}
		args  = []any{q.Collection}
	)
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		where = append(where, jsonField(f.Field)+" = ?")
		args = append(args, sqlValue(f.Value))
	}

	orderExpr := "id"
	if q.OrderBy != "" {
		if !fieldPattern.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		orderExpr = jsonField(q.OrderBy)
		where = append(where, orderExpr+" IS NOT NULL")
	}
	cmp, dir := ">", "ASC"
	if q.Direction == docstore.Desc {
		cmp, dir = "<", "DESC"
	}

	if q.StartAfterID != "" {
		var cursor any
		err := s.db.QueryRowContext(ctx,
			"SELECT "+orderExpr+" FROM documents WHERE collection = ? AND id = ?",
			q.Collection, q.StartAfterID,
		).Scan(&cursor)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrCursorNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve query cursor: %w", err)
		}
		if b, ok := cursor.([]byte); ok {
			cursor = string(b)
		}
		if q.OrderBy == "" {
			where = append(where, "id "+cmp+" ?")
			args = append(args, q.StartAfterID)
		} else {
			where = append(where, fmt.Sprintf("(%[1]s %[2]s ? OR (%[1]s = ? AND id %[2]s ?))", orderExpr, cmp))
			args = append(args, cursor, cursor, q.StartAfterID)
		}
	}

	stmt := "SELECT id, data FROM documents WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + orderExpr + " " + dir
	if q.OrderBy != "" {
		stmt += ", id " + dir
	}
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var out []*docstore.Snapshot
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		data, err := unmarshalDoc(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", q.Collection, id, err)
		}
		out = append(out, &docstore.Snapshot{Ref: docstore.Ref{Collection: q.Collection, ID: id}, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunTransaction runs fn inside BEGIN IMMEDIATE and retries a bounded number
// of times when SQLite reports the database busy.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	logger := contextutil.LoggerFromContext(ctx)

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !isBusy(err) {
			return err
		}
		logger.DebugContext(ctx, "sqlite transaction contention, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*20) * time.Millisecond):
		}
	}
	return err
}

func (s *DocumentStore) runOnce(ctx context.Context, fn docstore.TxFunc) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &sqliteTx{ctx: ctx, tx: sqlTx, now: s.now().UTC()}
	if err := fn(ctx, tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// sqliteTx applies writes directly to the open SQL transaction; the
// read-before-write rule is still enforced so callers behave the same on
// every backend.
type sqliteTx struct {
	ctx   context.Context
	tx    *sql.Tx
	now   time.Time
	wrote bool
}

func (t *sqliteTx) Get(ctx context.Context, ref docstore.Ref) (*docstore.Snapshot, error) {
	if t.wrote {
		return nil, docstore.ErrReadAfterWrite
	}
	return getDoc(ctx, t.tx, ref)
}

func (t *sqliteTx) Set(ref docstore.Ref, data map[string]any) error {
	t.wrote = true
	return t.put(ref, resolve(data, nil, t.now))
}

func (t *sqliteTx) Merge(ref docstore.Ref, data map[string]any) error {
	current, err := getDoc(t.ctx, t.tx, ref)
	if err != nil {
		return err
	}
	t.wrote = true
	return t.put(ref, resolve(data, current.Data, t.now))
}

func (t *sqliteTx) Delete(ref docstore.Ref) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", docstore.ErrInvalidRef, ref.Path())
	}
	t.wrote = true
	if _, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		ref.Collection, ref.ID,
	); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", ref.Path(), err)
	}
	return nil
}

func (t *sqliteTx) put(ref docstore.Ref, data map[string]any) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", docstore.ErrInvalidRef, ref.Path())
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", ref.Path(), err)
	}
	ts := t.now.Format(TimeLayout)
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO documents (collection, id, data, create_time, update_time)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET
		 data = excluded.data, update_time = excluded.update_time`,
		ref.Collection, ref.ID, string(raw), ts, ts,
	); err != nil {
		return fmt.Errorf("failed to write document %s: %w", ref.Path(), err)
	}
	return nil
}

// resolve merges patch into base (nil base means replace), replacing
// write sentinels and normalizing timestamps.
func resolve(patch, base map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		switch val := v.(type) {
		case docstore.Increment:
			out[k] = decode.IntOr(out[k], 0) + int64(val)
		case map[string]any:
			var nested map[string]any
			if base != nil {
				nested, _ = decode.Map(out[k])
			}
			if nested == nil {
				// a replaced nested map still needs its sentinels resolved
				nested = map[string]any{}
			}
			out[k] = resolve(val, nested, now)
		default:
			out[k] = storedValue(v, now)
		}
	}
	return out
}

func storedValue(v any, now time.Time) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(TimeLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(TimeLayout)
	}
	if docstore.IsServerTimestamp(v) {
		return now.Format(TimeLayout)
	}
	return v
}

func sqlValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(TimeLayout)
	case bool:
		if val {
			return 1
		}
		return 0
	}
	return v
}

func jsonField(field string) string {
	return `json_extract(data, '$."` + field + `"')`
}

func unmarshalDoc(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	data := map[string]any{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}
