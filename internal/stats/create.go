package stats

import (
	"context"
	"fmt"

	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
)

// CreateRequest is the input of the create transaction.
type CreateRequest struct {
	Refs   Refs
	Record model.Record
	Script model.Script
	Prompt model.Prompt
	// PromptCount is the number of active prompts in the script, used when
	// the overview snapshot has no entry for it yet.
	PromptCount int64
}

// NewCreateRequest builds the request for a new record.
func NewCreateRequest(rec model.Record, script model.Script, prompt model.Prompt, promptCount int64) CreateRequest {
	return CreateRequest{
		Refs:        NewRefs(rec.UID, rec.RecordID, rec.ScriptID, rec.PromptID),
		Record:      rec,
		Script:      script,
		Prompt:      prompt,
		PromptCount: promptCount,
	}
}

// CreateResult reports which speaker markers the transaction created.
type CreateResult struct {
	PromptSpeakerAdded bool
	ScriptSpeakerAdded bool
}

// Create writes a new record and counts it. The prompt and script speaker
// markers are checked independently: a uid can be new to a prompt while
// already counted for its script.
func Create(ctx context.Context, tx docstore.Tx, req CreateRequest) (CreateResult, error) {
	r := req.Refs
	snaps, err := readAll(ctx, tx,
		r.Record,
		r.PromptSpeaker,
		r.ScriptSpeaker,
		r.PromptStats,
		r.ScriptStats,
		r.ScriptsOverview,
		r.PromptsByScript,
	)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create transaction read: %w", err)
	}
	recordSnap, promptMarker, scriptMarker := snaps[0], snaps[1], snaps[2]
	promptStats, scriptStats := model.DecodeStats(snaps[3]), model.DecodeStats(snaps[4])
	overview, promptsBy := snaps[5], snaps[6]

	if recordSnap.Exists() {
		return CreateResult{}, ErrRecordExists
	}

	res := CreateResult{
		PromptSpeakerAdded: !promptMarker.Exists(),
		ScriptSpeakerAdded: !scriptMarker.Exists(),
	}
	rec := req.Record

	doc := rec.NewDoc()
	if err := tx.Set(r.Record, doc); err != nil {
		return CreateResult{}, err
	}
	if err := tx.Set(r.UserRecord, doc); err != nil {
		return CreateResult{}, err
	}

	if err := tx.Merge(r.User, map[string]any{
		"uid":                rec.UID,
		"contribution_count": docstore.Increment(1),
		"updated_at":         docstore.ServerTimestamp,
	}); err != nil {
		return CreateResult{}, err
	}

	// counters are rewritten from the floored values read above so the
	// stats documents and the snapshot entries agree exactly
	promptStats.TotalRecords++
	promptStats.UniqueSpeakers += boolInt(res.PromptSpeakerAdded)
	scriptStats.TotalRecords++
	scriptStats.UniqueSpeakers += boolInt(res.ScriptSpeakerAdded)

	if err := tx.Merge(r.PromptStats, statsDoc(map[string]any{
		"prompt_id": rec.PromptID,
		"script_id": rec.ScriptID,
	}, promptStats, true)); err != nil {
		return CreateResult{}, err
	}
	if err := tx.Merge(r.ScriptStats, statsDoc(map[string]any{
		"script_id": rec.ScriptID,
	}, scriptStats, true)); err != nil {
		return CreateResult{}, err
	}

	if res.PromptSpeakerAdded {
		if err := tx.Set(r.PromptSpeaker, markerDoc(rec.UID)); err != nil {
			return CreateResult{}, err
		}
	}
	if res.ScriptSpeakerAdded {
		if err := tx.Set(r.ScriptSpeaker, markerDoc(rec.UID)); err != nil {
			return CreateResult{}, err
		}
	}

	if scripts, ok := snapshotMap(overview, model.FieldScriptsMap); ok {
		promptCount := req.PromptCount
		if prev, ok := model.DecodeScriptEntry(rec.ScriptID, scripts[rec.ScriptID]); ok {
			promptCount = prev.PromptCount
		}
		entry := model.ScriptEntry{
			ScriptID:       rec.ScriptID,
			Title:          req.Script.Title,
			Description:    req.Script.Description,
			Order:          req.Script.Order,
			IsActive:       req.Script.IsActive,
			PromptCount:    promptCount,
			TotalRecords:   scriptStats.TotalRecords,
			UniqueSpeakers: scriptStats.UniqueSpeakers,
		}
		scripts[rec.ScriptID] = entry.Doc()
		if err := tx.Set(r.ScriptsOverview, map[string]any{
			model.FieldScriptsMap: scripts,
			"updated_at":          docstore.ServerTimestamp,
		}); err != nil {
			return CreateResult{}, err
		}
	}

	if prompts, ok := snapshotMap(promptsBy, model.FieldPromptsMap); ok {
		entry := model.PromptEntry{
			PromptID:       rec.PromptID,
			Text:           req.Prompt.Text,
			Order:          req.Prompt.Order,
			IsActive:       req.Prompt.IsActive,
			TotalRecords:   promptStats.TotalRecords,
			UniqueSpeakers: promptStats.UniqueSpeakers,
		}
		prompts[rec.PromptID] = entry.Doc()
		if err := tx.Set(r.PromptsByScript, map[string]any{
			"script_id":           rec.ScriptID,
			model.FieldPromptsMap: prompts,
			"updated_at":          docstore.ServerTimestamp,
		}); err != nil {
			return CreateResult{}, err
		}
	}

	return res, nil
}

// statsDoc fills base with the counter fields of st.
func statsDoc(base map[string]any, st model.Stats, recorded bool) map[string]any {
	base["total_records"] = st.TotalRecords
	base["unique_speakers"] = st.UniqueSpeakers
	base["updated_at"] = docstore.ServerTimestamp
	if recorded {
		base["last_record_at"] = docstore.ServerTimestamp
	}
	return base
}

func markerDoc(uid string) map[string]any {
	return map[string]any{
		"uid":        uid,
		"created_at": docstore.ServerTimestamp,
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
