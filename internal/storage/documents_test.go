package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()

	db, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate() error = %v", err)
	}

	store := NewDocumentStore(db)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestDocumentStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Get(context.Background(), docstore.Doc("records/missing"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if snap.Exists() {
		t.Error("Get() missing document should not exist")
	}
}

func TestDocumentStore_InvalidRef(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  docstore.Ref
	}{
		{name: "empty id", ref: docstore.Ref{Collection: "records"}},
		{name: "empty collection", ref: docstore.Ref{ID: "r1"}},
		{name: "odd nesting", ref: docstore.Ref{Collection: "users/u1", ID: "r1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Get(ctx, tt.ref); !errors.Is(err, docstore.ErrInvalidRef) {
				t.Errorf("Get() error = %v, want ErrInvalidRef", err)
			}
			if err := store.Set(ctx, tt.ref, map[string]any{"a": 1}); !errors.Is(err, docstore.ErrInvalidRef) {
				t.Errorf("Set() error = %v, want ErrInvalidRef", err)
			}
		})
	}
}

func TestDocumentStore_SetAndMerge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ref := docstore.Doc("users/u1")

	created := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)
	if err := store.Set(ctx, ref, map[string]any{
		"display_name": "alice",
		"created_at":   created,
		"nested":       map[string]any{"a": 1, "b": 2},
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := store.Merge(ctx, ref, map[string]any{
		"total_records": docstore.Increment(2),
		"updated_at":    docstore.ServerTimestamp,
		"nested":        map[string]any{"b": 3},
	}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if err := store.Merge(ctx, ref, map[string]any{"total_records": docstore.Increment(-1)}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	snap, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !snap.Exists() {
		t.Fatal("Get() document should exist")
	}

	if got := decode.StringOr(snap.Get("display_name"), ""); got != "alice" {
		t.Errorf("display_name = %q, want alice", got)
	}
	if got, _ := decode.Int(snap.Get("total_records")); got != 1 {
		t.Errorf("total_records = %d, want 1", got)
	}
	if got, ok := decode.Time(snap.Get("created_at")); !ok || !got.Equal(created) {
		t.Errorf("created_at = %v, want %v", snap.Get("created_at"), created)
	}
	if _, ok := decode.Time(snap.Get("updated_at")); !ok {
		t.Errorf("updated_at = %v, want a timestamp", snap.Get("updated_at"))
	}

	nested, ok := decode.Map(snap.Get("nested"))
	if !ok {
		t.Fatalf("nested = %v, want map", snap.Get("nested"))
	}
	if a, _ := decode.Int(nested["a"]); a != 1 {
		t.Errorf("nested.a = %v, want 1 (preserved by merge)", nested["a"])
	}
	if b, _ := decode.Int(nested["b"]); b != 3 {
		t.Errorf("nested.b = %v, want 3", nested["b"])
	}
}

func TestDocumentStore_SetReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ref := docstore.Doc("scripts/s1")

	if err := store.Set(ctx, ref, map[string]any{"title": "a", "order": 1}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, ref, map[string]any{"title": "b"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	snap, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if snap.Get("order") != nil {
		t.Errorf("order = %v, want field removed by Set", snap.Get("order"))
	}
}

func TestDocumentStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ref := docstore.Doc("records/r1")

	if err := store.Set(ctx, ref, map[string]any{"uid": "u1"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// deleting again is not an error
	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete() second call error = %v", err)
	}

	snap, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if snap.Exists() {
		t.Error("document should be gone after Delete()")
	}
}

func TestDocumentStore_GetAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, docstore.Doc("prompts/p2"), map[string]any{"text": "two"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	snaps, err := store.GetAll(ctx, []docstore.Ref{
		docstore.Doc("prompts/p1"),
		docstore.Doc("prompts/p2"),
	})
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("GetAll() returned %d snapshots, want 2", len(snaps))
	}
	if snaps[0].Exists() || !snaps[1].Exists() {
		t.Errorf("GetAll() existence = [%v %v], want [false true]", snaps[0].Exists(), snaps[1].Exists())
	}
}

func TestDocumentStore_Query(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	coll := "users/u1/records"
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		ref := docstore.Ref{Collection: coll, ID: fmt.Sprintf("r%d", i)}
		if err := store.Set(ctx, ref, map[string]any{
			"created_at": base.Add(time.Duration(i) * time.Minute),
			"script_id":  []string{"s1", "s2"}[i%2],
		}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	// missing the order field, never returned by ordered queries
	if err := store.Set(ctx, docstore.Ref{Collection: coll, ID: "r0"}, map[string]any{"script_id": "s1"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// other collection
	if err := store.Set(ctx, docstore.Doc("records/r9"), map[string]any{"created_at": base}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	ordered := docstore.Query{Collection: coll, OrderBy: "created_at", Direction: docstore.Desc}

	tests := []struct {
		name    string
		query   docstore.Query
		want    []string
		wantErr error
	}{
		{
			name:  "ordered desc",
			query: ordered,
			want:  []string{"r5", "r4", "r3", "r2", "r1"},
		},
		{
			name:  "limit",
			query: docstore.Query{Collection: coll, OrderBy: "created_at", Direction: docstore.Desc, Limit: 2},
			want:  []string{"r5", "r4"},
		},
		{
			name:  "start after",
			query: docstore.Query{Collection: coll, OrderBy: "created_at", Direction: docstore.Desc, StartAfterID: "r4", Limit: 2},
			want:  []string{"r3", "r2"},
		},
		{
			name:  "ascending",
			query: docstore.Query{Collection: coll, OrderBy: "created_at", Direction: docstore.Asc, Limit: 2},
			want:  []string{"r1", "r2"},
		},
		{
			name:  "filter",
			query: docstore.Query{Collection: coll}.Where("script_id", "s1"),
			want:  []string{"r0", "r2", "r4"},
		},
		{
			name:  "by id after cursor",
			query: docstore.Query{Collection: coll, StartAfterID: "r3"},
			want:  []string{"r4", "r5"},
		},
		{
			name:    "unknown cursor",
			query:   docstore.Query{Collection: coll, OrderBy: "created_at", StartAfterID: "nope"},
			wantErr: docstore.ErrCursorNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := store.Query(ctx, tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Query() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			var got []string
			for _, s := range snaps {
				got = append(got, s.Ref.ID)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Query() ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentStore_QueryRejectsBadField(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Query(context.Background(), docstore.Query{Collection: "records", OrderBy: "x') OR 1=1 --"})
	if err == nil {
		t.Error("Query() should reject a non-identifier order field")
	}
}

func TestDocumentStore_QueryOrdersNumbers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	totals := map[string]int{"a": 9, "b": 10, "c": 2, "d": 10}
	for uid, n := range totals {
		if err := store.Set(ctx, docstore.Doc("users/"+uid), map[string]any{"total_records": n}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	snaps, err := store.Query(ctx, docstore.Query{Collection: "users", OrderBy: "total_records", Direction: docstore.Desc, Limit: 3})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	var got []string
	for _, s := range snaps {
		got = append(got, s.Ref.ID)
	}
	// ties broken by id in the same direction
	if want := "[d b a]"; fmt.Sprint(got) != want {
		t.Errorf("Query() ids = %v, want %s", got, want)
	}
}

func TestDocumentStore_RunTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ref := docstore.Doc("prompt_stats/p1")

	t.Run("error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if err := tx.Set(ref, map[string]any{"total_records": 1}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("RunTransaction() error = %v, want boom", err)
		}
		snap, err := store.Get(ctx, ref)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if snap.Exists() {
			t.Error("write from aborted transaction should not be visible")
		}
	})

	t.Run("read after write rejected", func(t *testing.T) {
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if err := tx.Merge(ref, map[string]any{"total_records": 1}); err != nil {
				return err
			}
			_, err := tx.Get(ctx, ref)
			return err
		})
		if !errors.Is(err, docstore.ErrReadAfterWrite) {
			t.Errorf("RunTransaction() error = %v, want ErrReadAfterWrite", err)
		}
	})

	t.Run("concurrent increments", func(t *testing.T) {
		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
					snap, err := tx.Get(ctx, ref)
					if err != nil {
						return err
					}
					n := decode.Count(snap.Get("total_records"))
					return tx.Merge(ref, map[string]any{"total_records": n + 1})
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("RunTransaction() error = %v", err)
			}
		}

		snap, err := store.Get(ctx, ref)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got := decode.Count(snap.Get("total_records")); got != workers {
			t.Errorf("total_records = %d, want %d", got, workers)
		}
	})
}
