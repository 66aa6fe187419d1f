package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
	"moracollect-api/internal/service"
	"moracollect-api/internal/storage"
)

func init() {
	// Set default logger to discard output for cleaner test output
	// This suppresses logs from slog.Default() used in the service layer
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// testContext returns a context for testing.
// The default logger is already set to discard in init().
func testContext() context.Context {
	return context.Background()
}

const (
	rid1 = "11111111-1111-4111-8111-111111111111"
	rid2 = "22222222-2222-4222-8222-222222222222"
	rid3 = "33333333-3333-4333-8333-333333333333"
)

var testLimits = service.Limits{
	UploadURLTTL:   10 * time.Minute,
	DownloadURLTTL: time.Hour,
	MaxUploadBytes: 1000,
	MaxAvatarBytes: 100,
}

func newTestStore(t *testing.T) docstore.Store {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate() error = %v", err)
	}
	store := storage.NewDocumentStore(db)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func put(t *testing.T, store docstore.Store, ref docstore.Ref, data map[string]any) {
	t.Helper()
	if err := store.Set(testContext(), ref, data); err != nil {
		t.Fatalf("Set(%s) error = %v", ref.Path(), err)
	}
}

// seedCatalog writes script s1 with prompts p1 and p2, script s2 with prompt
// p3, an inactive script s3 with prompt p4, and an inactive prompt p5 in s1.
func seedCatalog(t *testing.T, store docstore.Store) {
	t.Helper()

	scripts := []model.Script{
		{ScriptID: "s1", Title: "Vowels", Order: 1, IsActive: true},
		{ScriptID: "s2", Title: "Consonants", Order: 2, IsActive: true},
		{ScriptID: "s3", Title: "Retired", Order: 0, IsActive: false},
	}
	prompts := []model.Prompt{
		{PromptID: "p1", ScriptID: "s1", Text: "a", Type: model.PromptTypeMora, Order: 1, IsActive: true},
		{PromptID: "p2", ScriptID: "s1", Text: "i", Type: model.PromptTypeMora, Order: 2, IsActive: true},
		{PromptID: "p3", ScriptID: "s2", Text: "ka", Type: model.PromptTypeMora, Order: 1, IsActive: true},
		{PromptID: "p4", ScriptID: "s3", Text: "u", Type: model.PromptTypeMora, Order: 1, IsActive: true},
		{PromptID: "p5", ScriptID: "s1", Text: "e", Type: model.PromptTypeMora, Order: 3, IsActive: false},
	}
	for _, s := range scripts {
		put(t, store, model.ScriptRef(s.ScriptID), s.Doc())
	}
	for _, p := range prompts {
		put(t, store, model.PromptRef(p.PromptID), p.Doc())
	}
}

func rawPath(uid, recordID string) string {
	return "raw/" + uid + "/" + recordID + ".webm"
}

func registerRequest(uid, recordID, scriptID, promptID string) service.RegisterRequest {
	return service.RegisterRequest{
		RecordID: recordID,
		RawPath:  rawPath(uid, recordID),
		ScriptID: scriptID,
		PromptID: promptID,
	}
}

func readStats(t *testing.T, store docstore.Store, ref docstore.Ref) model.Stats {
	t.Helper()
	snap, err := store.Get(testContext(), ref)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", ref.Path(), err)
	}
	return model.DecodeStats(snap)
}

func contribution(t *testing.T, store docstore.Store, uid string) int64 {
	t.Helper()
	snap, err := store.Get(testContext(), model.UserRef(uid))
	if err != nil {
		t.Fatalf("Get(user) error = %v", err)
	}
	return decode.Count(snap.Get("contribution_count"))
}

func exists(t *testing.T, store docstore.Store, ref docstore.Ref) bool {
	t.Helper()
	snap, err := store.Get(testContext(), ref)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", ref.Path(), err)
	}
	return snap.Exists()
}

// counters captures every counter a registration may touch.
type counters struct {
	promptTotal, promptUnique int64
	scriptTotal, scriptUnique int64
	contribution              int64
}

func readCounters(t *testing.T, store docstore.Store, uid, scriptID, promptID string) counters {
	t.Helper()
	p := readStats(t, store, model.PromptStatsRef(promptID))
	s := readStats(t, store, model.ScriptStatsRef(scriptID))
	return counters{
		promptTotal:  p.TotalRecords,
		promptUnique: p.UniqueSpeakers,
		scriptTotal:  s.TotalRecords,
		scriptUnique: s.UniqueSpeakers,
		contribution: contribution(t, store, uid),
	}
}

func getRecord(t *testing.T, store docstore.Store, ref docstore.Ref) model.Record {
	t.Helper()
	snap, err := store.Get(testContext(), ref)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", ref.Path(), err)
	}
	if !snap.Exists() {
		t.Fatalf("%s does not exist", ref.Path())
	}
	return model.DecodeRecord(snap)
}
