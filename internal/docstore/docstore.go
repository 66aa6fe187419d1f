// Package docstore defines the document database contract the service relies
// on: per-document reads and merges with server timestamps, atomic numeric
// increments, ordered/limited/filtered collection queries, and transactions
// that read and write several documents atomically.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidRef is returned for references with an empty collection or id.
	ErrInvalidRef = errors.New("invalid document reference")
	// ErrReadAfterWrite is returned when a transaction reads after writing.
	ErrReadAfterWrite = errors.New("transaction reads must precede writes")
	// ErrCursorNotFound is returned when StartAfterID names a missing document.
	ErrCursorNotFound = errors.New("query cursor document not found")
)

// Ref addresses a single document. Collection may itself be nested, e.g.
// "users/u1/records".
type Ref struct {
	Collection string
	ID         string
}

// Doc builds a reference from a slash separated path with an even number of
// segments ("users/u1" or "users/u1/records/r1").
func Doc(path string) Ref {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return Ref{ID: path}
	}
	return Ref{Collection: path[:i], ID: path[i+1:]}
}

// Path returns collection/id.
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// Child returns a reference in the sub-collection of r.
func (r Ref) Child(collection, id string) Ref {
	return Ref{Collection: r.Path() + "/" + collection, ID: id}
}

// Valid reports whether the reference can be used.
func (r Ref) Valid() bool {
	if r.Collection == "" || r.ID == "" || strings.Contains(r.ID, "/") {
		return false
	}
	return strings.Count(r.Collection, "/")%2 == 0
}

// Snapshot is the result of reading a document. Data is nil when the
// document does not exist.
type Snapshot struct {
	Ref  Ref
	Data map[string]any
}

// Exists reports whether the document was found.
func (s *Snapshot) Exists() bool {
	return s != nil && s.Data != nil
}

// Get returns a top level field or nil.
func (s *Snapshot) Get(field string) any {
	if s == nil || s.Data == nil {
		return nil
	}
	return s.Data[field]
}

// Increment is a write value that atomically adds N to a numeric field.
// A missing or non-numeric field is treated as zero.
type Increment int64

// serverTimestamp is the sentinel type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a write value replaced by the commit time of the write.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Direction orders query results.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality predicate on a top level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from a single collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	// StartAfterID continues an ordered query after the document with this
	// id. The document must exist in the collection.
	StartAfterID string
	Limit        int
}

// Where appends an equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Tx is an open transaction. Every Get must happen before the first write;
// writes become visible atomically on commit.
type Tx interface {
	// Get reads a document inside the transaction. A missing document is a
	// snapshot with nil Data, not an error.
	Get(ctx context.Context, ref Ref) (*Snapshot, error)
	// Set replaces the document.
	Set(ref Ref, data map[string]any) error
	// Merge writes the given fields, merging nested maps, creating the
	// document when missing.
	Merge(ref Ref, data map[string]any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ref Ref) error
}

// TxFunc is the body of a transaction. It may be invoked more than once when
// the store retries on contention, so it must not have side effects outside tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is a document database.
type Store interface {
	Get(ctx context.Context, ref Ref) (*Snapshot, error)
	// GetAll reads several documents; the result is in argument order.
	GetAll(ctx context.Context, refs []Ref) ([]*Snapshot, error)
	Set(ctx context.Context, ref Ref, data map[string]any) error
	Merge(ctx context.Context, ref Ref, data map[string]any) error
	Delete(ctx context.Context, ref Ref) error
	Query(ctx context.Context, q Query) ([]*Snapshot, error)
	// RunTransaction runs fn atomically. Any error returned by fn aborts the
	// transaction and is returned unchanged.
	RunTransaction(ctx context.Context, fn TxFunc) error
	Close() error
}
