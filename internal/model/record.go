package model

import (
	"time"

	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
)

// Record status values.
const (
	StatusUploaded  = "uploaded"
	StatusProcessed = "processed"
)

// ClientMeta describes the client that produced a recording. Nil fields are
// unknown.
type ClientMeta struct {
	Platform   *string
	UserAgent  *string
	AppVersion *string
	Locale     *string
}

// DecodeClientMeta reads client metadata leniently; anything that is not a
// map yields an empty value.
func DecodeClientMeta(v any) ClientMeta {
	m, _ := decode.Map(v)
	return ClientMeta{
		Platform:   decode.OptString(m["platform"]),
		UserAgent:  decode.OptString(m["user_agent"]),
		AppVersion: decode.OptString(m["app_version"]),
		Locale:     decode.OptString(m["locale"]),
	}
}

// Doc returns the known fields only.
func (c ClientMeta) Doc() map[string]any {
	out := map[string]any{}
	putString(out, "platform", c.Platform)
	putString(out, "user_agent", c.UserAgent)
	putString(out, "app_version", c.AppVersion)
	putString(out, "locale", c.Locale)
	return out
}

// FillFrom copies fields of other that are unknown in c and reports whether
// anything changed. Known values are never overwritten.
func (c ClientMeta) FillFrom(other ClientMeta) (ClientMeta, bool) {
	changed := false
	fill(&c.Platform, other.Platform, &changed)
	fill(&c.UserAgent, other.UserAgent, &changed)
	fill(&c.AppVersion, other.AppVersion, &changed)
	fill(&c.Locale, other.Locale, &changed)
	return c, changed
}

// RecordingMeta describes an uploaded recording. Nil fields are unknown.
type RecordingMeta struct {
	MimeType   *string
	SizeBytes  *int64
	DurationMs *int64
}

// DecodeRecordingMeta reads recording metadata leniently. Negative numbers
// are treated as unknown.
func DecodeRecordingMeta(v any) RecordingMeta {
	m, _ := decode.Map(v)
	return RecordingMeta{
		MimeType:   decode.OptString(m["mime_type"]),
		SizeBytes:  decode.OptNonNegInt(m["size_bytes"]),
		DurationMs: decode.OptNonNegInt(m["duration_ms"]),
	}
}

// Doc returns the known fields only.
func (r RecordingMeta) Doc() map[string]any {
	out := map[string]any{}
	putString(out, "mime_type", r.MimeType)
	if r.SizeBytes != nil {
		out["size_bytes"] = *r.SizeBytes
	}
	if r.DurationMs != nil {
		out["duration_ms"] = *r.DurationMs
	}
	return out
}

// FillFrom copies fields of other that are unknown in r.
func (r RecordingMeta) FillFrom(other RecordingMeta) (RecordingMeta, bool) {
	changed := false
	fill(&r.MimeType, other.MimeType, &changed)
	fill(&r.SizeBytes, other.SizeBytes, &changed)
	fill(&r.DurationMs, other.DurationMs, &changed)
	return r, changed
}

func fill[T any](dst **T, src *T, changed *bool) {
	if *dst == nil && src != nil {
		*dst = src
		*changed = true
	}
}

func putString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

// Record is one registered contribution. The same shape is stored at
// records/{id} and mirrored at users/{uid}/records/{id}.
type Record struct {
	RecordID      string
	UID           string
	ScriptID      string
	PromptID      string
	PromptText    string
	RawPath       string
	ProcessedPath *string
	Status        string
	ClientMeta    ClientMeta
	RecordingMeta RecordingMeta
	CreatedAt     *time.Time
	UpdatedAt     *time.Time
}

// DecodeRecord reads a record document. The document id wins over a stored
// record_id field.
func DecodeRecord(snap *docstore.Snapshot) Record {
	d := snap.Data
	return Record{
		RecordID:      snap.Ref.ID,
		UID:           decode.StringOr(d["uid"], ""),
		ScriptID:      decode.StringOr(d["script_id"], ""),
		PromptID:      decode.StringOr(d["prompt_id"], ""),
		PromptText:    decode.StringOr(d["prompt_text"], ""),
		RawPath:       decode.StringOr(d["raw_path"], ""),
		ProcessedPath: decode.OptString(d["processed_path"]),
		Status:        decode.StringOr(d["status"], StatusUploaded),
		ClientMeta:    DecodeClientMeta(d["client_meta"]),
		RecordingMeta: DecodeRecordingMeta(d["recording_meta"]),
		CreatedAt:     decode.OptTime(d["created_at"]),
		UpdatedAt:     decode.OptTime(d["updated_at"]),
	}
}

// NewDoc returns the document written when the record is first created.
// Timestamps are assigned by the store.
func (r Record) NewDoc() map[string]any {
	doc := map[string]any{
		"record_id":      r.RecordID,
		"uid":            r.UID,
		"script_id":      r.ScriptID,
		"prompt_id":      r.PromptID,
		"prompt_text":    r.PromptText,
		"raw_path":       r.RawPath,
		"processed_path": nil,
		"status":         r.Status,
		"client_meta":    r.ClientMeta.Doc(),
		"recording_meta": r.RecordingMeta.Doc(),
		"created_at":     docstore.ServerTimestamp,
		"updated_at":     docstore.ServerTimestamp,
	}
	if r.ProcessedPath != nil {
		doc["processed_path"] = *r.ProcessedPath
	}
	if r.Status == "" {
		doc["status"] = StatusUploaded
	}
	return doc
}
