// Package model defines the stored entities, how they map to documents, and
// where each document lives.
package model

import "moracollect-api/internal/docstore"

// Collection names.
const (
	CollRecords            = "records"
	CollUsers              = "users"
	CollScripts            = "scripts"
	CollPrompts            = "prompts"
	CollPromptStats        = "prompt_stats"
	CollScriptStats        = "script_stats"
	CollStatsSnapshots     = "stats_snapshots"
	CollPromptsBySnapshots = "prompts_by_script_snapshots"

	subRecords         = "records"
	subSpeakers        = "speakers"
	docScriptsOverview = "scripts_overview"
)

// RecordRef is records/{id}.
func RecordRef(recordID string) docstore.Ref {
	return docstore.Ref{Collection: CollRecords, ID: recordID}
}

// UserRef is users/{uid}.
func UserRef(uid string) docstore.Ref {
	return docstore.Ref{Collection: CollUsers, ID: uid}
}

// UserRecordsCollection is the per-user record mirror collection.
func UserRecordsCollection(uid string) string {
	return UserRef(uid).Path() + "/" + subRecords
}

// UserRecordRef is users/{uid}/records/{id}.
func UserRecordRef(uid, recordID string) docstore.Ref {
	return UserRef(uid).Child(subRecords, recordID)
}

func ScriptRef(scriptID string) docstore.Ref {
	return docstore.Ref{Collection: CollScripts, ID: scriptID}
}

func PromptRef(promptID string) docstore.Ref {
	return docstore.Ref{Collection: CollPrompts, ID: promptID}
}

func PromptStatsRef(promptID string) docstore.Ref {
	return docstore.Ref{Collection: CollPromptStats, ID: promptID}
}

func ScriptStatsRef(scriptID string) docstore.Ref {
	return docstore.Ref{Collection: CollScriptStats, ID: scriptID}
}

// PromptSpeakerRef marks uid as already counted for the prompt.
func PromptSpeakerRef(promptID, uid string) docstore.Ref {
	return PromptStatsRef(promptID).Child(subSpeakers, uid)
}

// ScriptSpeakerRef marks uid as already counted for the script.
func ScriptSpeakerRef(scriptID, uid string) docstore.Ref {
	return ScriptStatsRef(scriptID).Child(subSpeakers, uid)
}

// ScriptsOverviewRef is the single scripts overview snapshot.
func ScriptsOverviewRef() docstore.Ref {
	return docstore.Ref{Collection: CollStatsSnapshots, ID: docScriptsOverview}
}

// PromptsByScriptRef is the prompts snapshot of one script.
func PromptsByScriptRef(scriptID string) docstore.Ref {
	return docstore.Ref{Collection: CollPromptsBySnapshots, ID: scriptID}
}
