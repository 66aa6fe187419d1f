// Package stats keeps the denormalized contribution counters consistent with
// the records they count.
//
// Every record creation and deletion runs as one transaction that touches the
// record, its per-user mirror, the user's contribution count, the prompt and
// script stats, the speaker markers and both read snapshots. Transactions
// read everything they need first and write afterwards.
package stats

import (
	"context"
	"errors"

	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
)

var (
	// ErrRecordExists is returned by Create when the record was written
	// concurrently.
	ErrRecordExists = errors.New("record already exists")
	// ErrRecordGone is returned by Delete when the record no longer exists.
	ErrRecordGone = errors.New("record no longer exists")
)

// Refs is every document a create or delete transaction touches.
type Refs struct {
	Record          docstore.Ref
	UserRecord      docstore.Ref
	User            docstore.Ref
	PromptStats     docstore.Ref
	PromptSpeaker   docstore.Ref
	ScriptStats     docstore.Ref
	ScriptSpeaker   docstore.Ref
	ScriptsOverview docstore.Ref
	PromptsByScript docstore.Ref
}

// NewRefs lays out the documents for one record.
func NewRefs(uid, recordID, scriptID, promptID string) Refs {
	return Refs{
		Record:          model.RecordRef(recordID),
		UserRecord:      model.UserRecordRef(uid, recordID),
		User:            model.UserRef(uid),
		PromptStats:     model.PromptStatsRef(promptID),
		PromptSpeaker:   model.PromptSpeakerRef(promptID, uid),
		ScriptStats:     model.ScriptStatsRef(scriptID),
		ScriptSpeaker:   model.ScriptSpeakerRef(scriptID, uid),
		ScriptsOverview: model.ScriptsOverviewRef(),
		PromptsByScript: model.PromptsByScriptRef(scriptID),
	}
}

// Engine runs the create and delete transactions against a store.
type Engine struct {
	store docstore.Store
}

// NewEngine creates an Engine.
func NewEngine(store docstore.Store) *Engine {
	return &Engine{store: store}
}

// RunCreate runs Create in its own transaction.
func (e *Engine) RunCreate(ctx context.Context, req CreateRequest) (CreateResult, error) {
	var res CreateResult
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		res, err = Create(ctx, tx, req)
		return err
	})
	if err != nil {
		return CreateResult{}, err
	}
	return res, nil
}

// RunDelete runs Delete in its own transaction.
func (e *Engine) RunDelete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	var res DeleteResult
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		res, err = Delete(ctx, tx, req)
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

// snapshotMap returns the map field of a snapshot document. ok is false when
// the document is missing or the field is not a map; such snapshots are left
// for the rebuild job and readers fall back to live queries.
func snapshotMap(snap *docstore.Snapshot, field string) (map[string]any, bool) {
	if !snap.Exists() {
		return nil, false
	}
	m, ok := snap.Data[field].(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out, true
}

func floorSub(n, d int64) int64 {
	if n-d < 0 {
		return 0
	}
	return n - d
}

// readAll performs the transaction reads in order, stopping at the first error.
func readAll(ctx context.Context, tx docstore.Tx, refs ...docstore.Ref) ([]*docstore.Snapshot, error) {
	out := make([]*docstore.Snapshot, len(refs))
	for i, ref := range refs {
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		out[i] = snap
	}
	return out, nil
}
