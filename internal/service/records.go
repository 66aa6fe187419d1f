package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_record_service.go -package=mocks -mock_names=RecordService=MockRecordService moracollect-api/internal/service RecordService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
	"moracollect-api/internal/stats"
	"moracollect-api/internal/validate"
)

const (
	defaultRecordsLimit = 20
	maxRecordsLimit     = 100
)

// RegisterRequest registers an uploaded recording.
type RegisterRequest struct {
	RecordID      string
	RawPath       string
	ScriptID      string
	PromptID      string
	ClientMeta    model.ClientMeta
	RecordingMeta model.RecordingMeta
}

// RegisterResult is the outcome of a registration.
type RegisterResult struct {
	RecordID          string
	Status            string
	AlreadyRegistered bool
}

// RecordPage is one page of the caller's records, newest first.
type RecordPage struct {
	Records    []model.Record
	NextCursor string
}

// DeleteResult is the outcome of deleting a record.
type DeleteResult struct {
	RecordID       string
	StorageDeleted bool
}

// RecordService manages the caller's records.
type RecordService interface {
	// IssueUploadURL issues a signed PUT URL for a new raw recording.
	IssueUploadURL(ctx context.Context, uid string, req UploadRequest) (UploadURL, error)
	// Register creates the record for an uploaded object, or confirms an
	// earlier registration of the same upload.
	Register(ctx context.Context, uid string, req RegisterRequest) (RegisterResult, error)
	// ListMine pages through the caller's records.
	ListMine(ctx context.Context, uid string, limit int, cursor string) (RecordPage, error)
	// DeleteMine deletes one of the caller's records and its object.
	DeleteMine(ctx context.Context, uid, recordID string) (DeleteResult, error)
}

type recordService struct {
	store   docstore.Store
	engine  *stats.Engine
	objects ObjectStore
	limits  Limits
}

// NewRecordService creates a new RecordService.
func NewRecordService(store docstore.Store, objects ObjectStore, limits Limits) RecordService {
	return &recordService{
		store:   store,
		engine:  stats.NewEngine(store),
		objects: objects,
		limits:  limits,
	}
}

type registerInput struct {
	uid           string
	recordID      string
	scriptID      string
	promptID      string
	raw           validate.RawObject
	clientMeta    model.ClientMeta
	recordingMeta model.RecordingMeta
}

func (s *recordService) validateRegister(uid string, req RegisterRequest) (registerInput, error) {
	in := registerInput{uid: uid, clientMeta: req.ClientMeta, recordingMeta: req.RecordingMeta}
	var err error
	if in.recordID, err = validate.RecordID(req.RecordID); err != nil {
		return in, fromValidate(err)
	}
	if in.scriptID, err = validate.Slug("script_id", req.ScriptID); err != nil {
		return in, fromValidate(err)
	}
	if in.promptID, err = validate.Slug("prompt_id", req.PromptID); err != nil {
		return in, fromValidate(err)
	}
	if in.raw, err = validate.RawPath(uid, in.recordID, req.RawPath); err != nil {
		return in, fromValidate(err)
	}

	meta := req.RecordingMeta
	if meta.SizeBytes != nil && *meta.SizeBytes > s.limits.MaxUploadBytes {
		return in, &ValidationError{
			Field:   "recording_meta.size_bytes",
			Message: fmt.Sprintf("must not exceed %d", s.limits.MaxUploadBytes),
		}
	}
	if meta.MimeType != nil {
		ct, err := validate.ContentType(in.raw.Ext, *meta.MimeType)
		if err != nil {
			return in, &ValidationError{Field: "recording_meta.mime_type", Message: "does not match raw_path extension"}
		}
		in.recordingMeta.MimeType = &ct
	}
	return in, nil
}

// Register creates or confirms a record.
func (s *recordService) Register(ctx context.Context, uid string, req RegisterRequest) (RegisterResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	in, err := s.validateRegister(uid, req)
	if err != nil {
		logger.WarnContext(ctx, "invalid register request", "error", err)
		return RegisterResult{}, err
	}
	logger = logger.With("record_id", in.recordID, "script_id", in.scriptID, "prompt_id", in.promptID, "raw_path", in.raw.Path)

	existing, err := s.store.Get(ctx, model.RecordRef(in.recordID))
	if err != nil {
		logger.ErrorContext(ctx, "failed to read record", "error", err)
		return RegisterResult{}, WrapError(err, "failed to read record")
	}
	if existing.Exists() {
		return s.confirm(ctx, logger, in, model.DecodeRecord(existing))
	}

	script, prompt, promptCount, err := s.loadCatalog(ctx, in.scriptID, in.promptID)
	if err != nil {
		return RegisterResult{}, err
	}

	ok, err := s.objects.Exists(ctx, in.raw.Path)
	if err != nil {
		logger.ErrorContext(ctx, "failed to check uploaded object", "error", err)
		return RegisterResult{}, WrapError(err, "failed to check uploaded object")
	}
	if !ok {
		return RegisterResult{}, notFound("Uploaded object not found")
	}

	rec := model.Record{
		RecordID:      in.recordID,
		UID:           uid,
		ScriptID:      in.scriptID,
		PromptID:      in.promptID,
		PromptText:    prompt.Text,
		RawPath:       in.raw.Path,
		Status:        model.StatusUploaded,
		ClientMeta:    in.clientMeta,
		RecordingMeta: in.recordingMeta,
	}
	res, err := s.engine.RunCreate(ctx, stats.NewCreateRequest(rec, script, prompt, promptCount))
	if errors.Is(err, stats.ErrRecordExists) {
		// lost a race with a concurrent registration of the same id
		snap, err := s.store.Get(ctx, model.RecordRef(in.recordID))
		if err != nil {
			logger.ErrorContext(ctx, "failed to read record", "error", err)
			return RegisterResult{}, WrapError(err, "failed to read record")
		}
		if !snap.Exists() {
			return RegisterResult{}, conflict("Record was modified concurrently, retry")
		}
		return s.confirm(ctx, logger, in, model.DecodeRecord(snap))
	}
	if err != nil {
		logTxFailure(ctx, logger, "create", uid, err)
		return RegisterResult{}, WrapError(err, "failed to register record")
	}

	logger.InfoContext(ctx, "record registered",
		"prompt_speaker_added", res.PromptSpeakerAdded,
		"script_speaker_added", res.ScriptSpeakerAdded,
	)
	return RegisterResult{RecordID: in.recordID, Status: model.StatusUploaded}, nil
}

// loadCatalog checks that the script and prompt exist, are active and belong
// together, and counts the active prompts of the script.
func (s *recordService) loadCatalog(ctx context.Context, scriptID, promptID string) (model.Script, model.Prompt, int64, error) {
	snaps, err := s.store.GetAll(ctx, []docstore.Ref{model.ScriptRef(scriptID), model.PromptRef(promptID)})
	if err != nil {
		return model.Script{}, model.Prompt{}, 0, WrapError(err, "failed to read catalog")
	}
	if !snaps[0].Exists() {
		return model.Script{}, model.Prompt{}, 0, notFound("Script not found")
	}
	script := model.DecodeScript(snaps[0])
	if !script.IsActive {
		return model.Script{}, model.Prompt{}, 0, notFound("Script is not active")
	}
	if !snaps[1].Exists() {
		return model.Script{}, model.Prompt{}, 0, notFound("Prompt not found")
	}
	prompt := model.DecodePrompt(snaps[1])
	if !prompt.IsActive {
		return model.Script{}, model.Prompt{}, 0, notFound("Prompt is not active")
	}
	if prompt.ScriptID != scriptID {
		return model.Script{}, model.Prompt{}, 0, notFound("Prompt does not belong to script")
	}

	prompts, err := activePrompts(ctx, s.store, scriptID)
	if err != nil {
		return model.Script{}, model.Prompt{}, 0, WrapError(err, "failed to count prompts")
	}
	return script, prompt, int64(len(prompts)), nil
}

// confirm handles a registration for a record id that already exists. The
// upload identity must match; unknown metadata fields are filled in, known
// ones are kept. Counters are not touched.
func (s *recordService) confirm(ctx context.Context, logger *slog.Logger, in registerInput, rec model.Record) (RegisterResult, error) {
	if rec.UID != in.uid || rec.RawPath != in.raw.Path {
		logger.WarnContext(ctx, "record id reused for a different upload", "owner_uid", rec.UID, "stored_raw_path", rec.RawPath)
		return RegisterResult{}, conflict("record_id is already registered for a different upload")
	}
	if rec.ScriptID != in.scriptID || rec.PromptID != in.promptID {
		logger.WarnContext(ctx, "record id reused for a different prompt", "stored_script_id", rec.ScriptID, "stored_prompt_id", rec.PromptID)
		return RegisterResult{}, conflict("record_id is already registered for a different prompt")
	}

	status := rec.Status
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, model.RecordRef(rec.RecordID))
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return notFound("Record not found")
		}
		current := model.DecodeRecord(snap)
		status = current.Status

		recording, recChanged := current.RecordingMeta.FillFrom(in.recordingMeta)
		client, clientChanged := current.ClientMeta.FillFrom(in.clientMeta)

		data := make(map[string]any, len(snap.Data)+3)
		for k, v := range snap.Data {
			data[k] = v
		}
		if recChanged || clientChanged {
			data["recording_meta"] = recording.Doc()
			data["client_meta"] = client.Doc()
			data["updated_at"] = docstore.ServerTimestamp
			if err := tx.Merge(model.RecordRef(rec.RecordID), map[string]any{
				"recording_meta": recording.Doc(),
				"client_meta":    client.Doc(),
				"updated_at":     docstore.ServerTimestamp,
			}); err != nil {
				return err
			}
		}
		return tx.Set(model.UserRecordRef(rec.UID, rec.RecordID), data)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RegisterResult{}, err
		}
		logTxFailure(ctx, logger, "confirm", in.uid, err)
		return RegisterResult{}, WrapError(err, "failed to update record")
	}

	logger.InfoContext(ctx, "record already registered")
	return RegisterResult{RecordID: rec.RecordID, Status: status, AlreadyRegistered: true}, nil
}

// ListMine returns the caller's records ordered by creation time, newest
// first. cursor is the last record id of the previous page.
func (s *recordService) ListMine(ctx context.Context, uid string, limit int, cursor string) (RecordPage, error) {
	if limit <= 0 {
		limit = defaultRecordsLimit
	}
	if limit > maxRecordsLimit {
		limit = maxRecordsLimit
	}
	if cursor != "" {
		id, err := validate.RecordID(cursor)
		if err != nil {
			return RecordPage{}, &ValidationError{Field: "cursor", Message: "must be a record id"}
		}
		cursor = id
	}

	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection:   model.UserRecordsCollection(uid),
		OrderBy:      "created_at",
		Direction:    docstore.Desc,
		StartAfterID: cursor,
		Limit:        limit + 1,
	})
	if errors.Is(err, docstore.ErrCursorNotFound) {
		return RecordPage{}, &ValidationError{Field: "cursor", Message: "unknown cursor"}
	}
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to list records", "error", err)
		return RecordPage{}, WrapError(err, "failed to list records")
	}

	page := RecordPage{Records: make([]model.Record, 0, min(len(snaps), limit))}
	for i, snap := range snaps {
		if i == limit {
			page.NextCursor = page.Records[limit-1].RecordID
			break
		}
		page.Records = append(page.Records, model.DecodeRecord(snap))
	}
	return page, nil
}

// DeleteMine deletes a record owned by uid. The object is deleted after the
// transaction commits; a failed object delete is reported, not retried.
func (s *recordService) DeleteMine(ctx context.Context, uid, recordID string) (DeleteResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	id, err := validate.RecordID(recordID)
	if err != nil {
		return DeleteResult{}, fromValidate(err)
	}
	logger = logger.With("record_id", id)

	snap, err := s.store.Get(ctx, model.RecordRef(id))
	if err != nil {
		logger.ErrorContext(ctx, "failed to read record", "error", err)
		return DeleteResult{}, WrapError(err, "failed to read record")
	}
	if !snap.Exists() {
		return DeleteResult{}, notFound("Record not found")
	}
	rec := model.DecodeRecord(snap)
	if rec.UID != uid {
		logger.WarnContext(ctx, "delete of another user's record", "owner_uid", rec.UID)
		return DeleteResult{}, forbidden("Record belongs to another user")
	}
	if _, err := validate.RawPath(uid, id, rec.RawPath); err != nil {
		logger.WarnContext(ctx, "stored raw path is not owned by caller", "raw_path", rec.RawPath, "error", err)
		return DeleteResult{}, forbidden("Record object is not owned by caller")
	}
	logger = logger.With("script_id", rec.ScriptID, "prompt_id", rec.PromptID, "raw_path", rec.RawPath)

	hasOtherPrompt, err := HasOtherUserRecord(ctx, s.store, uid, "prompt_id", rec.PromptID, id)
	if err != nil {
		logger.ErrorContext(ctx, "failed to query other prompt records", "error", err)
		return DeleteResult{}, WrapError(err, "failed to query other records")
	}
	hasOtherScript, err := HasOtherUserRecord(ctx, s.store, uid, "script_id", rec.ScriptID, id)
	if err != nil {
		logger.ErrorContext(ctx, "failed to query other script records", "error", err)
		return DeleteResult{}, WrapError(err, "failed to query other records")
	}

	res, err := s.engine.RunDelete(ctx, stats.NewDeleteRequest(rec, hasOtherPrompt, hasOtherScript))
	if errors.Is(err, stats.ErrRecordGone) {
		return DeleteResult{}, notFound("Record not found")
	}
	if err != nil {
		logTxFailure(ctx, logger, "delete", uid, err)
		return DeleteResult{}, WrapError(err, "failed to delete record")
	}

	out := DeleteResult{RecordID: id}
	deleted, err := s.objects.DeleteIfExists(ctx, rec.RawPath)
	if err != nil {
		logger.ErrorContext(ctx, "record deleted but object delete failed", "error", err)
	} else {
		out.StorageDeleted = deleted
	}

	logger.InfoContext(ctx, "record deleted",
		"prompt_speaker_removed", res.PromptSpeakerRemoved,
		"script_speaker_removed", res.ScriptSpeakerRemoved,
		"storage_deleted", out.StorageDeleted,
	)
	return out, nil
}

// HasOtherUserRecord reports whether uid has a record other than
// excludingRecordID whose field equals value. It reads at most two mirror
// documents and runs outside any transaction.
func HasOtherUserRecord(ctx context.Context, store docstore.Store, uid, field string, value any, excludingRecordID string) (bool, error) {
	snaps, err := store.Query(ctx, docstore.Query{
		Collection: model.UserRecordsCollection(uid),
		Limit:      2,
	}.Where(field, value))
	if err != nil {
		return false, err
	}
	for _, snap := range snaps {
		if snap.Ref.ID != excludingRecordID {
			return true, nil
		}
	}
	return false, nil
}

func logTxFailure(ctx context.Context, logger *slog.Logger, op, uid string, err error) {
	logger.ErrorContext(ctx, "stats transaction failed",
		"op", op,
		"uid", uid,
		"error_type", fmt.Sprintf("%T", errors.Unwrap(err)),
		"error", err,
	)
}
