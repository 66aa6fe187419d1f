package stats

import (
	"context"
	"fmt"

	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
)

// DeleteRequest is the input of the delete transaction.
//
// HasOtherPromptRecord and HasOtherScriptRecord are computed by the caller
// before the transaction starts, since collection queries cannot run inside
// it. A record created by the same uid between that query and the commit can
// therefore leave a speaker marker removed too early.
type DeleteRequest struct {
	Refs                 Refs
	Record               model.Record
	HasOtherPromptRecord bool
	HasOtherScriptRecord bool
}

// NewDeleteRequest builds the request for an existing record.
func NewDeleteRequest(rec model.Record, hasOtherPrompt, hasOtherScript bool) DeleteRequest {
	return DeleteRequest{
		Refs:                 NewRefs(rec.UID, rec.RecordID, rec.ScriptID, rec.PromptID),
		Record:               rec,
		HasOtherPromptRecord: hasOtherPrompt,
		HasOtherScriptRecord: hasOtherScript,
	}
}

// DeleteResult reports which speaker markers the transaction removed.
type DeleteResult struct {
	PromptSpeakerRemoved bool
	ScriptSpeakerRemoved bool
}

// Delete removes a record and uncounts it. Every counter is floored at zero.
func Delete(ctx context.Context, tx docstore.Tx, req DeleteRequest) (DeleteResult, error) {
	r := req.Refs
	snaps, err := readAll(ctx, tx,
		r.Record,
		r.User,
		r.PromptSpeaker,
		r.ScriptSpeaker,
		r.PromptStats,
		r.ScriptStats,
		r.ScriptsOverview,
		r.PromptsByScript,
	)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete transaction read: %w", err)
	}
	recordSnap, userSnap, promptMarker, scriptMarker := snaps[0], snaps[1], snaps[2], snaps[3]
	promptStats, scriptStats := model.DecodeStats(snaps[4]), model.DecodeStats(snaps[5])
	overview, promptsBy := snaps[6], snaps[7]

	if !recordSnap.Exists() {
		return DeleteResult{}, ErrRecordGone
	}

	// a missing marker means the uid was never counted, so there is
	// nothing to uncount
	res := DeleteResult{
		PromptSpeakerRemoved: !req.HasOtherPromptRecord && promptMarker.Exists(),
		ScriptSpeakerRemoved: !req.HasOtherScriptRecord && scriptMarker.Exists(),
	}
	rec := req.Record

	if err := tx.Merge(r.User, map[string]any{
		"contribution_count": floorSub(decode.Count(userSnap.Get("contribution_count")), 1),
		"updated_at":         docstore.ServerTimestamp,
	}); err != nil {
		return DeleteResult{}, err
	}

	promptStats = uncount(promptStats, res.PromptSpeakerRemoved)
	scriptStats = uncount(scriptStats, res.ScriptSpeakerRemoved)
	if err := tx.Merge(r.PromptStats, statsDoc(map[string]any{}, promptStats, false)); err != nil {
		return DeleteResult{}, err
	}
	if err := tx.Merge(r.ScriptStats, statsDoc(map[string]any{}, scriptStats, false)); err != nil {
		return DeleteResult{}, err
	}

	if res.PromptSpeakerRemoved {
		if err := tx.Delete(r.PromptSpeaker); err != nil {
			return DeleteResult{}, err
		}
	}
	if res.ScriptSpeakerRemoved {
		if err := tx.Delete(r.ScriptSpeaker); err != nil {
			return DeleteResult{}, err
		}
	}

	if scripts, ok := snapshotMap(overview, model.FieldScriptsMap); ok {
		if entry, ok := model.DecodeScriptEntry(rec.ScriptID, scripts[rec.ScriptID]); ok {
			entry.TotalRecords = scriptStats.TotalRecords
			entry.UniqueSpeakers = scriptStats.UniqueSpeakers
			scripts[rec.ScriptID] = entry.Doc()
			if err := tx.Set(r.ScriptsOverview, map[string]any{
				model.FieldScriptsMap: scripts,
				"updated_at":          docstore.ServerTimestamp,
			}); err != nil {
				return DeleteResult{}, err
			}
		}
	}

	if prompts, ok := snapshotMap(promptsBy, model.FieldPromptsMap); ok {
		if entry, ok := model.DecodePromptEntry(rec.PromptID, prompts[rec.PromptID]); ok {
			entry.TotalRecords = promptStats.TotalRecords
			entry.UniqueSpeakers = promptStats.UniqueSpeakers
			prompts[rec.PromptID] = entry.Doc()
			if err := tx.Set(r.PromptsByScript, map[string]any{
				"script_id":           rec.ScriptID,
				model.FieldPromptsMap: prompts,
				"updated_at":          docstore.ServerTimestamp,
			}); err != nil {
				return DeleteResult{}, err
			}
		}
	}

	if err := tx.Delete(r.UserRecord); err != nil {
		return DeleteResult{}, err
	}
	if err := tx.Delete(r.Record); err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

func uncount(st model.Stats, speakerRemoved bool) model.Stats {
	st.TotalRecords = floorSub(st.TotalRecords, 1)
	if speakerRemoved {
		st.UniqueSpeakers = floorSub(st.UniqueSpeakers, 1)
	}
	if st.UniqueSpeakers > st.TotalRecords {
		st.UniqueSpeakers = st.TotalRecords
	}
	return st
}
