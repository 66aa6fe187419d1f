package model

import (
	"time"

	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
)

// Snapshot document field names.
const (
	FieldScriptsMap = "scripts_map"
	FieldPromptsMap = "prompts_map"
)

// PromptTypeMora is the default prompt type.
const PromptTypeMora = "mora"

// Script groups prompts.
type Script struct {
	ScriptID    string
	Title       string
	Description string
	Order       int64
	IsActive    bool
}

// DecodeScript reads a script document. Title falls back to the id and
// scripts are active unless stated otherwise.
func DecodeScript(snap *docstore.Snapshot) Script {
	d := snap.Data
	id := decode.StringOr(d["script_id"], snap.Ref.ID)
	return Script{
		ScriptID:    id,
		Title:       decode.StringOr(d["title"], id),
		Description: decode.StringOr(d["description"], ""),
		Order:       decode.IntOr(d["order"], 0),
		IsActive:    decode.Bool(d["is_active"], true),
	}
}

// Doc is the stored form written by seeding.
func (s Script) Doc() map[string]any {
	return map[string]any{
		"script_id":   s.ScriptID,
		"title":       s.Title,
		"description": s.Description,
		"order":       s.Order,
		"is_active":   s.IsActive,
	}
}

// Prompt is one text to record.
type Prompt struct {
	PromptID string
	ScriptID string
	Text     string
	Type     string
	Order    int64
	IsActive bool
}

// DecodePrompt reads a prompt document.
func DecodePrompt(snap *docstore.Snapshot) Prompt {
	d := snap.Data
	return Prompt{
		PromptID: decode.StringOr(d["prompt_id"], snap.Ref.ID),
		ScriptID: decode.StringOr(d["script_id"], ""),
		Text:     decode.StringOr(d["text"], ""),
		Type:     decode.StringOr(d["type"], PromptTypeMora),
		Order:    decode.IntOr(d["order"], 0),
		IsActive: decode.Bool(d["is_active"], true),
	}
}

// Doc is the stored form written by seeding.
func (p Prompt) Doc() map[string]any {
	return map[string]any{
		"prompt_id": p.PromptID,
		"script_id": p.ScriptID,
		"text":      p.Text,
		"type":      p.Type,
		"order":     p.Order,
		"is_active": p.IsActive,
	}
}

// Stats are the counters kept per prompt and per script.
type Stats struct {
	TotalRecords   int64
	UniqueSpeakers int64
	UpdatedAt      *time.Time
	LastRecordAt   *time.Time
}

// DecodeStats reads a stats document; drifted negative counters read as 0.
func DecodeStats(snap *docstore.Snapshot) Stats {
	d := snap.Data
	return Stats{
		TotalRecords:   decode.Count(d["total_records"]),
		UniqueSpeakers: decode.Count(d["unique_speakers"]),
		UpdatedAt:      decode.OptTime(d["updated_at"]),
		LastRecordAt:   decode.OptTime(d["last_record_at"]),
	}
}

// ScriptEntry is one value of the scripts overview snapshot map.
type ScriptEntry struct {
	ScriptID       string
	Title          string
	Description    string
	Order          int64
	IsActive       bool
	PromptCount    int64
	TotalRecords   int64
	UniqueSpeakers int64
}

// DecodeScriptEntry reads a snapshot entry; ok is false when v is not a map.
func DecodeScriptEntry(id string, v any) (ScriptEntry, bool) {
	m, ok := decode.Map(v)
	if !ok {
		return ScriptEntry{}, false
	}
	id = decode.StringOr(m["script_id"], id)
	return ScriptEntry{
		ScriptID:       id,
		Title:          decode.StringOr(m["title"], id),
		Description:    decode.StringOr(m["description"], ""),
		Order:          decode.IntOr(m["order"], 0),
		IsActive:       decode.Bool(m["is_active"], true),
		PromptCount:    decode.Count(m["prompt_count"]),
		TotalRecords:   decode.Count(m["total_records"]),
		UniqueSpeakers: decode.Count(m["unique_speakers"]),
	}, true
}

// Doc is the stored form of the entry.
func (e ScriptEntry) Doc() map[string]any {
	return map[string]any{
		"script_id":       e.ScriptID,
		"title":           e.Title,
		"description":     e.Description,
		"order":           e.Order,
		"is_active":       e.IsActive,
		"prompt_count":    e.PromptCount,
		"total_records":   e.TotalRecords,
		"unique_speakers": e.UniqueSpeakers,
	}
}

// PromptEntry is one value of a prompts-by-script snapshot map.
type PromptEntry struct {
	PromptID       string
	Text           string
	Order          int64
	IsActive       bool
	TotalRecords   int64
	UniqueSpeakers int64
}

// DecodePromptEntry reads a snapshot entry; ok is false when v is not a map.
func DecodePromptEntry(id string, v any) (PromptEntry, bool) {
	m, ok := decode.Map(v)
	if !ok {
		return PromptEntry{}, false
	}
	return PromptEntry{
		PromptID:       decode.StringOr(m["prompt_id"], id),
		Text:           decode.StringOr(m["text"], ""),
		Order:          decode.IntOr(m["order"], 0),
		IsActive:       decode.Bool(m["is_active"], true),
		TotalRecords:   decode.Count(m["total_records"]),
		UniqueSpeakers: decode.Count(m["unique_speakers"]),
	}, true
}

// Doc is the stored form of the entry.
func (e PromptEntry) Doc() map[string]any {
	return map[string]any{
		"prompt_id":       e.PromptID,
		"text":            e.Text,
		"order":           e.Order,
		"is_active":       e.IsActive,
		"total_records":   e.TotalRecords,
		"unique_speakers": e.UniqueSpeakers,
	}
}
