package service_test

import (
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
	"moracollect-api/internal/service"
	"moracollect-api/internal/service/mocks"
)

func ptr[T any](v T) *T { return &v }

// newRecordService returns a service whose uploaded objects always exist.
func newRecordService(t *testing.T) (service.RecordService, *mocks.MockObjectStore, docstore.Store) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := newTestStore(t)
	seedCatalog(t, store)
	objects := mocks.NewMockObjectStore(ctrl)
	objects.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	return service.NewRecordService(store, objects, testLimits), objects, store
}

func TestRecordService_Register(t *testing.T) {
	svc, _, store := newRecordService(t)
	ctx := testContext()

	before := readCounters(t, store, "u1", "s1", "p1")
	got, err := svc.Register(ctx, "u1", registerRequest("u1", rid1, "s1", "p1"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got.AlreadyRegistered || got.Status != model.StatusUploaded || got.RecordID != rid1 {
		t.Errorf("Register() = %+v, want new uploaded record", got)
	}

	after := readCounters(t, store, "u1", "s1", "p1")
	want := counters{
		promptTotal:  before.promptTotal + 1,
		promptUnique: 1,
		scriptTotal:  before.scriptTotal + 1,
		scriptUnique: 1,
		contribution: before.contribution + 1,
	}
	if after != want {
		t.Errorf("counters = %+v, want %+v", after, want)
	}
	if !exists(t, store, model.RecordRef(rid1)) || !exists(t, store, model.UserRecordRef("u1", rid1)) {
		t.Error("record or mirror missing after Register()")
	}

	again, err := svc.Register(ctx, "u1", registerRequest("u1", rid1, "s1", "p1"))
	if err != nil {
		t.Fatalf("Register() retry error = %v", err)
	}
	if !again.AlreadyRegistered {
		t.Error("Register() retry AlreadyRegistered = false, want true")
	}
	if got := readCounters(t, store, "u1", "s1", "p1"); got != after {
		t.Errorf("counters after retry = %+v, want unchanged %+v", got, after)
	}
}

func TestRecordService_Register_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		uid  string
		req  service.RegisterRequest
	}{
		{
			name: "different owner",
			uid:  "u2",
			req:  registerRequest("u2", rid1, "s1", "p1"),
		},
		{
			name: "different raw path",
			uid:  "u1",
			req: service.RegisterRequest{
				RecordID: rid1,
				RawPath:  "raw/u1/" + rid1 + ".ogg",
				ScriptID: "s1",
				PromptID: "p1",
			},
		},
		{
			name: "different prompt",
			uid:  "u1",
			req:  registerRequest("u1", rid1, "s1", "p2"),
		},
		{
			name: "different script",
			uid:  "u1",
			req:  registerRequest("u1", rid1, "s2", "p3"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, store := newRecordService(t)
			ctx := testContext()

			if _, err := svc.Register(ctx, "u1", registerRequest("u1", rid1, "s1", "p1")); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			before := readCounters(t, store, "u1", "s1", "p1")
			otherPrompt := readStats(t, store, model.PromptStatsRef(tt.req.PromptID))

			_, err := svc.Register(ctx, tt.uid, tt.req)
			if !errors.Is(err, service.ErrConflict) {
				t.Fatalf("Register() error = %v, want ErrConflict", err)
			}
			if got := readCounters(t, store, "u1", "s1", "p1"); got != before {
				t.Errorf("counters = %+v, want unchanged %+v", got, before)
			}
			if got := readStats(t, store, model.PromptStatsRef(tt.req.PromptID)); got.TotalRecords != otherPrompt.TotalRecords {
				t.Errorf("prompt %s total = %d, want %d", tt.req.PromptID, got.TotalRecords, otherPrompt.TotalRecords)
			}
			if contribution(t, store, "u2") != 0 {
				t.Error("conflicting caller was credited")
			}
		})
	}
}

func TestRecordService_Register_Preconditions(t *testing.T) {
	tests := []struct {
		name      string
		req       service.RegisterRequest
		objectOK  bool
		wantErr   error
		wantField string
	}{
		{
			name:      "invalid record id",
			req:       registerRequest("u1", "not-a-uuid", "s1", "p1"),
			wantField: "record_id",
		},
		{
			name:      "invalid script id",
			req:       registerRequest("u1", rid1, "../s1", "p1"),
			wantField: "script_id",
		},
		{
			name: "path of another user",
			req: service.RegisterRequest{
				RecordID: rid1,
				RawPath:  rawPath("u2", rid1),
				ScriptID: "s1",
				PromptID: "p1",
			},
			wantField: "raw_path",
		},
		{
			name: "path of another record",
			req: service.RegisterRequest{
				RecordID: rid1,
				RawPath:  rawPath("u1", rid2),
				ScriptID: "s1",
				PromptID: "p1",
			},
			wantField: "raw_path",
		},
		{
			name: "size over limit",
			req: func() service.RegisterRequest {
				r := registerRequest("u1", rid1, "s1", "p1")
				r.RecordingMeta.SizeBytes = ptr(int64(1001))
				return r
			}(),
			wantField: "recording_meta.size_bytes",
		},
		{
			name: "mime type does not match extension",
			req: func() service.RegisterRequest {
				r := registerRequest("u1", rid1, "s1", "p1")
				r.RecordingMeta.MimeType = ptr("audio/mpeg")
				return r
			}(),
			wantField: "recording_meta.mime_type",
		},
		{
			name:    "unknown script",
			req:     registerRequest("u1", rid1, "nope", "p1"),
			wantErr: service.ErrNotFound,
		},
		{
			name:    "inactive script",
			req:     registerRequest("u1", rid1, "s3", "p4"),
			wantErr: service.ErrNotFound,
		},
		{
			name:    "inactive prompt",
			req:     registerRequest("u1", rid1, "s1", "p5"),
			wantErr: service.ErrNotFound,
		},
		{
			name:    "prompt of another script",
			req:     registerRequest("u1", rid1, "s1", "p3"),
			wantErr: service.ErrNotFound,
		},
		{
			name:    "object not uploaded",
			req:     registerRequest("u1", rid1, "s1", "p1"),
			wantErr: service.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := newTestStore(t)
			seedCatalog(t, store)
			objects := mocks.NewMockObjectStore(ctrl)
			objects.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(tt.objectOK, nil).AnyTimes()
			svc := service.NewRecordService(store, objects, testLimits)

			_, err := svc.Register(testContext(), "u1", tt.req)
			if err == nil {
				t.Fatal("Register() expected error, got nil")
			}
			if tt.wantField != "" {
				var ve *service.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Errorf("Register() error = %v, want validation error on %s", err, tt.wantField)
				}
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if exists(t, store, model.RecordRef(rid1)) {
				t.Error("record written despite error")
			}
		})
	}
}

func TestRecordService_Register_FillsUnknownMetadata(t *testing.T) {
	svc, _, store := newRecordService(t)
	ctx := testContext()

	first := registerRequest("u1", rid1, "s1", "p1")
	first.RecordingMeta.SizeBytes = ptr(int64(500))
	first.ClientMeta.Platform = ptr("ios")
	if _, err := svc.Register(ctx, "u1", first); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	retry := registerRequest("u1", rid1, "s1", "p1")
	retry.RecordingMeta.SizeBytes = ptr(int64(900))
	retry.RecordingMeta.DurationMs = ptr(int64(1200))
	retry.RecordingMeta.MimeType = ptr("audio/webm;codecs=opus")
	retry.ClientMeta.Platform = ptr("android")
	retry.ClientMeta.Locale = ptr("ja-JP")
	got, err := svc.Register(ctx, "u1", retry)
	if err != nil {
		t.Fatalf("Register() retry error = %v", err)
	}
	if !got.AlreadyRegistered {
		t.Error("AlreadyRegistered = false, want true")
	}

	for _, ref := range []struct {
		name string
		rec  func() model.Record
	}{
		{"record", func() model.Record { return getRecord(t, store, model.RecordRef(rid1)) }},
		{"mirror", func() model.Record { return getRecord(t, store, model.UserRecordRef("u1", rid1)) }},
	} {
		rec := ref.rec()
		meta := rec.RecordingMeta
		if meta.SizeBytes == nil || *meta.SizeBytes != 500 {
			t.Errorf("%s size_bytes = %v, want 500 kept", ref.name, meta.SizeBytes)
		}
		if meta.DurationMs == nil || *meta.DurationMs != 1200 {
			t.Errorf("%s duration_ms = %v, want 1200 filled", ref.name, meta.DurationMs)
		}
		if meta.MimeType == nil || *meta.MimeType != "audio/webm" {
			t.Errorf("%s mime_type = %v, want audio/webm", ref.name, meta.MimeType)
		}
		if rec.ClientMeta.Platform == nil || *rec.ClientMeta.Platform != "ios" {
			t.Errorf("%s platform = %v, want ios kept", ref.name, rec.ClientMeta.Platform)
		}
		if rec.ClientMeta.Locale == nil || *rec.ClientMeta.Locale != "ja-JP" {
			t.Errorf("%s locale = %v, want ja-JP filled", ref.name, rec.ClientMeta.Locale)
		}
	}
	if got := contribution(t, store, "u1"); got != 1 {
		t.Errorf("contribution_count = %d, want 1", got)
	}
}

func TestRecordService_Register_SameSpeakerCountedOnce(t *testing.T) {
	svc, _, store := newRecordService(t)
	ctx := testContext()

	for _, id := range []string{rid1, rid2} {
		if _, err := svc.Register(ctx, "u1", registerRequest("u1", id, "s1", "p1")); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	p1 := readStats(t, store, model.PromptStatsRef("p1"))
	if p1.TotalRecords != 2 || p1.UniqueSpeakers != 1 {
		t.Errorf("prompt stats = %+v, want total 2 unique 1", p1)
	}
	if got := contribution(t, store, "u1"); got != 2 {
		t.Errorf("contribution_count = %d, want 2", got)
	}
}

func TestRecordService_TwoPromptScenario(t *testing.T) {
	svc, objects, store := newRecordService(t)
	ctx := testContext()
	objects.EXPECT().DeleteIfExists(gomock.Any(), rawPath("u1", rid1)).Return(true, nil)

	if _, err := svc.Register(ctx, "u1", registerRequest("u1", rid1, "s1", "p1")); err != nil {
		t.Fatalf("Register(p1) error = %v", err)
	}
	if _, err := svc.Register(ctx, "u1", registerRequest("u1", rid2, "s1", "p2")); err != nil {
		t.Fatalf("Register(p2) error = %v", err)
	}

	s1 := readStats(t, store, model.ScriptStatsRef("s1"))
	if s1.TotalRecords != 2 || s1.UniqueSpeakers != 1 {
		t.Errorf("script stats = %+v, want total 2 unique 1", s1)
	}
	if p1 := readStats(t, store, model.PromptStatsRef("p1")); p1.UniqueSpeakers != 1 {
		t.Errorf("p1 unique_speakers = %d, want 1", p1.UniqueSpeakers)
	}

	res, err := svc.DeleteMine(ctx, "u1", rid1)
	if err != nil {
		t.Fatalf("DeleteMine() error = %v", err)
	}
	if !res.StorageDeleted {
		t.Error("StorageDeleted = false, want true")
	}

	s1 = readStats(t, store, model.ScriptStatsRef("s1"))
	if s1.TotalRecords != 1 || s1.UniqueSpeakers != 1 {
		t.Errorf("script stats after delete = %+v, want total 1 unique 1", s1)
	}
	p1 := readStats(t, store, model.PromptStatsRef("p1"))
	if p1.TotalRecords != 0 || p1.UniqueSpeakers != 0 {
		t.Errorf("p1 stats after delete = %+v, want zeros", p1)
	}
	if exists(t, store, model.PromptSpeakerRef("p1", "u1")) {
		t.Error("p1 speaker marker still present")
	}
	if !exists(t, store, model.ScriptSpeakerRef("s1", "u1")) {
		t.Error("s1 speaker marker removed while a p2 record remains")
	}
	if got := contribution(t, store, "u1"); got != 1 {
		t.Errorf("contribution_count = %d, want 1", got)
	}
}

func TestRecordService_RoundTrip(t *testing.T) {
	svc, objects, _ := newRecordService(t)
	ctx := testContext()
	objects.EXPECT().DeleteIfExists(gomock.Any(), rawPath("u1", rid1)).Return(true, nil)

	if _, err := svc.Register(ctx, "u1", registerRequest("u1", rid1, "s1", "p2")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	page, err := svc.ListMine(ctx, "u1", 0, "")
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("ListMine() returned %d records, want 1", len(page.Records))
	}
	rec := page.Records[0]
	if rec.RecordID != rid1 || rec.ScriptID != "s1" || rec.PromptID != "p2" || rec.PromptText != "i" {
		t.Errorf("ListMine() record = %+v", rec)
	}
	if rec.CreatedAt == nil {
		t.Error("created_at not set")
	}

	if _, err := svc.DeleteMine(ctx, "u1", rid1); err != nil {
		t.Fatalf("DeleteMine() error = %v", err)
	}
	page, err = svc.ListMine(ctx, "u1", 0, "")
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(page.Records) != 0 {
		t.Errorf("ListMine() after delete returned %d records, want 0", len(page.Records))
	}
}

func TestRecordService_ListMine_Paginates(t *testing.T) {
	svc, _, _ := newRecordService(t)
	ctx := testContext()

	for _, id := range []string{rid1, rid2, rid3} {
		if _, err := svc.Register(ctx, "u1", registerRequest("u1", id, "s1", "p1")); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}
	if _, err := svc.Register(ctx, "u2", registerRequest("u2", "44444444-4444-4444-8444-444444444444", "s1", "p1")); err != nil {
		t.Fatalf("Register(u2) error = %v", err)
	}

	first, err := svc.ListMine(ctx, "u1", 2, "")
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(first.Records) != 2 || first.Records[0].RecordID != rid3 || first.Records[1].RecordID != rid2 {
		t.Fatalf("first page = %+v, want [%s %s]", first.Records, rid3, rid2)
	}
	if first.NextCursor != rid2 {
		t.Errorf("NextCursor = %q, want %q", first.NextCursor, rid2)
	}

	second, err := svc.ListMine(ctx, "u1", 2, first.NextCursor)
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(second.Records) != 1 || second.Records[0].RecordID != rid1 {
		t.Errorf("second page = %+v, want [%s]", second.Records, rid1)
	}
	if second.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", second.NextCursor)
	}

	for _, cursor := range []string{"bogus", "55555555-5555-4555-8555-555555555555"} {
		_, err := svc.ListMine(ctx, "u1", 2, cursor)
		var ve *service.ValidationError
		if !errors.As(err, &ve) || ve.Field != "cursor" {
			t.Errorf("ListMine(cursor=%q) error = %v, want cursor validation error", cursor, err)
		}
	}
}

func TestRecordService_DeleteMine_Errors(t *testing.T) {
	svc, _, store := newRecordService(t)
	ctx := testContext()
	if _, err := svc.Register(ctx, "u1", registerRequest("u1", rid1, "s1", "p1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		uid      string
		recordID string
		check    func(error) bool
	}{
		{
			name:     "invalid id",
			uid:      "u1",
			recordID: "abc",
			check: func(err error) bool {
				var ve *service.ValidationError
				return errors.As(err, &ve)
			},
		},
		{
			name:     "missing record",
			uid:      "u1",
			recordID: rid2,
			check:    func(err error) bool { return errors.Is(err, service.ErrNotFound) },
		},
		{
			name:     "record of another user",
			uid:      "u2",
			recordID: rid1,
			check:    func(err error) bool { return errors.Is(err, service.ErrForbidden) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.DeleteMine(ctx, tt.uid, tt.recordID)
			if err == nil || !tt.check(err) {
				t.Errorf("DeleteMine() error = %v", err)
			}
		})
	}
	if !exists(t, store, model.RecordRef(rid1)) {
		t.Error("record deleted by a failed call")
	}
}

func TestRecordService_DeleteMine_StorageFailure(t *testing.T) {
	svc, objects, store := newRecordService(t)
	ctx := testContext()
	objects.EXPECT().DeleteIfExists(gomock.Any(), gomock.Any()).Return(false, errors.New("gcs unavailable"))

	if _, err := svc.Register(ctx, "u1", registerRequest("u1", rid1, "s1", "p1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	res, err := svc.DeleteMine(ctx, "u1", rid1)
	if err != nil {
		t.Fatalf("DeleteMine() error = %v", err)
	}
	if res.StorageDeleted {
		t.Error("StorageDeleted = true, want false")
	}
	if exists(t, store, model.RecordRef(rid1)) {
		t.Error("record still present")
	}
}

func TestHasOtherUserRecord(t *testing.T) {
	svc, _, store := newRecordService(t)
	ctx := testContext()
	for _, r := range []struct{ id, prompt string }{{rid1, "p1"}, {rid2, "p2"}} {
		if _, err := svc.Register(ctx, "u1", registerRequest("u1", r.id, "s1", r.prompt)); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		field string
		value string
		want  bool
	}{
		{name: "only the excluded record", field: "prompt_id", value: "p1", want: false},
		{name: "another record on the script", field: "script_id", value: "s1", want: true},
		{name: "no records", field: "prompt_id", value: "p3", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := service.HasOtherUserRecord(ctx, store, "u1", tt.field, tt.value, rid1)
			if err != nil {
				t.Fatalf("HasOtherUserRecord() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HasOtherUserRecord() = %v, want %v", got, tt.want)
			}
		})
	}
}
