package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
)

// Filter narrows the records that are exported. Zero values match everything.
type Filter struct {
	UID      string
	ScriptID string
	PromptID string
	Since    *time.Time
	Until    *time.Time
	// Limit caps the number of records; 0 means no limit.
	Limit int
}

// Validate checks the limit and the time window.
func (f Filter) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", f.Limit)
	}
	if f.Since != nil && f.Until != nil && f.Since.After(*f.Until) {
		return fmt.Errorf("since must be before or equal to until")
	}
	return nil
}

// ParseTime parses an ISO 8601 timestamp. A trailing Z is accepted and a
// timestamp without a zone is taken as UTC.
func ParseTime(value, flag string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s is not valid ISO8601: %s", flag, value)
}

// exportable reports whether a record has audio that can be exported.
func exportable(r model.Record) bool {
	if r.RawPath == "" {
		return false
	}
	return r.Status == model.StatusUploaded || r.Status == model.StatusProcessed
}

// Select returns the exportable records matching f, oldest first. The time
// window only applies to records that carry a created_at.
func Select(ctx context.Context, store docstore.Store, f Filter) ([]model.Record, error) {
	q := docstore.Query{Collection: model.CollRecords}
	if f.UID != "" {
		q = q.Where("uid", f.UID)
	}
	if f.ScriptID != "" {
		q = q.Where("script_id", f.ScriptID)
	}
	if f.PromptID != "" {
		q = q.Where("prompt_id", f.PromptID)
	}

	snaps, err := store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	var out []model.Record
	for _, snap := range snaps {
		r := model.DecodeRecord(snap)
		if !exportable(r) {
			continue
		}
		if r.CreatedAt != nil {
			if f.Since != nil && r.CreatedAt.Before(*f.Since) {
				continue
			}
			if f.Until != nil && r.CreatedAt.After(*f.Until) {
				continue
			}
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case (a == nil) != (b == nil):
			return a != nil
		}
		return out[i].RecordID < out[j].RecordID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
