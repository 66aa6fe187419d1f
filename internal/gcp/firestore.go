package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"moracollect-api/internal/docstore"
)

// FirestoreStore implements docstore.Store on Cloud Firestore. When
// FIRESTORE_EMULATOR_HOST is set the client talks to the emulator.
type FirestoreStore struct {
	client *firestore.Client
}

var _ docstore.Store = (*FirestoreStore)(nil)

// NewFirestoreStore connects to the default database of projectID.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close closes the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) doc(ref docstore.Ref) (*firestore.DocumentRef, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidRef, ref.Path())
	}
	d := s.client.Doc(ref.Path())
	if d == nil {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidRef, ref.Path())
	}
	return d, nil
}

func snapshot(ref docstore.Ref, snap *firestore.DocumentSnapshot, err error) (*docstore.Snapshot, error) {
	if status.Code(err) == codes.NotFound {
		return &docstore.Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", ref.Path(), err)
	}
	if snap == nil || !snap.Exists() {
		return &docstore.Snapshot{Ref: ref}, nil
	}
	return &docstore.Snapshot{Ref: ref, Data: snap.Data()}, nil
}

// Get reads a single document.
func (s *FirestoreStore) Get(ctx context.Context, ref docstore.Ref) (*docstore.Snapshot, error) {
	d, err := s.doc(ref)
	if err != nil {
		return nil, err
	}
	snap, err := d.Get(ctx)
	return snapshot(ref, snap, err)
}

// GetAll reads documents in one batched call.
func (s *FirestoreStore) GetAll(ctx context.Context, refs []docstore.Ref) ([]*docstore.Snapshot, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	docs := make([]*firestore.DocumentRef, 0, len(refs))
	for _, ref := range refs {
		d, err := s.doc(ref)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	snaps, err := s.client.GetAll(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	out := make([]*docstore.Snapshot, len(refs))
	for i, snap := range snaps {
		if out[i], err = snapshot(refs[i], snap, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Set replaces a document.
func (s *FirestoreStore) Set(ctx context.Context, ref docstore.Ref, data map[string]any) error {
	d, err := s.doc(ref)
	if err != nil {
		return err
	}
	if _, err := d.Set(ctx, writeData(data)); err != nil {
		return fmt.Errorf("failed to write document %s: %w", ref.Path(), err)
	}
	return nil
}

// Merge merges fields into a document.
func (s *FirestoreStore) Merge(ctx context.Context, ref docstore.Ref, data map[string]any) error {
	d, err := s.doc(ref)
	if err != nil {
		return err
	}
	if _, err := d.Set(ctx, writeData(data), firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to merge document %s: %w", ref.Path(), err)
	}
	return nil
}

// Delete removes a document.
func (s *FirestoreStore) Delete(ctx context.Context, ref docstore.Ref) error {
	d, err := s.doc(ref)
	if err != nil {
		return err
	}
	if _, err := d.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", ref.Path(), err)
	}
	return nil
}

// Query runs q against a single collection.
func (s *FirestoreStore) Query(ctx context.Context, q docstore.Query) ([]*docstore.Snapshot, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("%w: empty collection", docstore.ErrInvalidRef)
	}
	coll := s.client.Collection(q.Collection)
	if coll == nil {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidRef, q.Collection)
	}

	query := coll.Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, "==", f.Value)
	}
	dir := firestore.Asc
	if q.Direction == docstore.Desc {
		dir = firestore.Desc
	}
	if q.OrderBy != "" {
		query = query.OrderBy(q.OrderBy, dir)
	} else {
		query = query.OrderBy(firestore.DocumentID, dir)
	}
	if q.StartAfterID != "" {
		cursor, err := coll.Doc(q.StartAfterID).Get(ctx)
		if status.Code(err) == codes.NotFound {
			return nil, docstore.ErrCursorNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve query cursor: %w", err)
		}
		query = query.StartAfter(cursor)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []*docstore.Snapshot
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
		}
		out = append(out, &docstore.Snapshot{
			Ref:  docstore.Ref{Collection: q.Collection, ID: snap.Ref.ID},
			Data: snap.Data(),
		})
	}
	return out, nil
}

// RunTransaction runs fn in a Firestore transaction. Firestore retries fn on
// contention.
func (s *FirestoreStore) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{store: s, tx: tx})
	})
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
	wrote bool
}

func (t *firestoreTx) Get(_ context.Context, ref docstore.Ref) (*docstore.Snapshot, error) {
	if t.wrote {
		return nil, docstore.ErrReadAfterWrite
	}
	d, err := t.store.doc(ref)
	if err != nil {
		return nil, err
	}
	snap, err := t.tx.Get(d)
	return snapshot(ref, snap, err)
}

func (t *firestoreTx) Set(ref docstore.Ref, data map[string]any) error {
	d, err := t.store.doc(ref)
	if err != nil {
		return err
	}
	t.wrote = true
	return t.tx.Set(d, writeData(data))
}

func (t *firestoreTx) Merge(ref docstore.Ref, data map[string]any) error {
	d, err := t.store.doc(ref)
	if err != nil {
		return err
	}
	t.wrote = true
	return t.tx.Set(d, writeData(data), firestore.MergeAll)
}

func (t *firestoreTx) Delete(ref docstore.Ref) error {
	d, err := t.store.doc(ref)
	if err != nil {
		return err
	}
	t.wrote = true
	return t.tx.Delete(d)
}

// writeData swaps the store-neutral write sentinels for Firestore transforms.
func writeData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case docstore.Increment:
			out[k] = firestore.Increment(int64(val))
		case map[string]any:
			out[k] = writeData(val)
		default:
			if docstore.IsServerTimestamp(v) {
				out[k] = firestore.ServerTimestamp
			} else {
				out[k] = v
			}
		}
	}
	return out
}
