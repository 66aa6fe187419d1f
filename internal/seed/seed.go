// Package seed loads the script and prompt catalog from JSON seed files into
// the document store.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
)

// Catalog is a parsed and validated pair of seed files.
type Catalog struct {
	Scripts []model.Script
	Prompts []model.Prompt
}

// Result counts what Apply wrote and removed.
type Result struct {
	Scripts        int
	Prompts        int
	DeletedScripts int
	DeletedPrompts int
}

// LoadFiles reads and validates the scripts and prompts seed files.
func LoadFiles(scriptsPath, promptsPath string) (Catalog, error) {
	sf, err := os.Open(scriptsPath)
	if err != nil {
		return Catalog{}, fmt.Errorf("open scripts seed: %w", err)
	}
	defer sf.Close()

	pf, err := os.Open(promptsPath)
	if err != nil {
		return Catalog{}, fmt.Errorf("open prompts seed: %w", err)
	}
	defer pf.Close()

	return Parse(sf, pf)
}

// Parse validates seed documents. Array items that are not objects are
// skipped; any invalid field fails the whole catalog.
func Parse(scripts, prompts io.Reader) (Catalog, error) {
	rawScripts, err := readArray(scripts, "scripts")
	if err != nil {
		return Catalog{}, err
	}
	rawPrompts, err := readArray(prompts, "prompts")
	if err != nil {
		return Catalog{}, err
	}

	var c Catalog
	known := make(map[string]bool, len(rawScripts))
	for i, item := range rawScripts {
		s, err := parseScript(item)
		if err != nil {
			return Catalog{}, fmt.Errorf("scripts[%d]: %w", i, err)
		}
		known[s.ScriptID] = true
		c.Scripts = append(c.Scripts, s)
	}
	for i, item := range rawPrompts {
		p, err := parsePrompt(item)
		if err != nil {
			return Catalog{}, fmt.Errorf("prompts[%d]: %w", i, err)
		}
		if !known[p.ScriptID] {
			return Catalog{}, fmt.Errorf("prompt %s references unknown script_id %s", p.PromptID, p.ScriptID)
		}
		c.Prompts = append(c.Prompts, p)
	}
	return c, nil
}

func readArray(r io.Reader, name string) ([]map[string]any, error) {
	var payload any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s seed: %w", name, err)
	}
	items, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array in %s seed", name)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func parseScript(m map[string]any) (model.Script, error) {
	id, err := requiredString(m, "script_id")
	if err != nil {
		return model.Script{}, err
	}
	title, err := requiredString(m, "title")
	if err != nil {
		return model.Script{}, err
	}
	desc, err := optionalString(m, "description", "")
	if err != nil {
		return model.Script{}, err
	}
	order, err := optionalInt(m, "order")
	if err != nil {
		return model.Script{}, err
	}
	return model.Script{
		ScriptID:    id,
		Title:       title,
		Description: desc,
		Order:       order,
		IsActive:    decode.Bool(m["is_active"], true),
	}, nil
}

func parsePrompt(m map[string]any) (model.Prompt, error) {
	id, err := requiredString(m, "prompt_id")
	if err != nil {
		return model.Prompt{}, err
	}
	scriptID, err := requiredString(m, "script_id")
	if err != nil {
		return model.Prompt{}, err
	}
	text, err := requiredString(m, "text")
	if err != nil {
		return model.Prompt{}, err
	}
	typ := model.PromptTypeMora
	if _, ok := m["type"]; ok {
		if typ, err = requiredString(m, "type"); err != nil {
			return model.Prompt{}, err
		}
	}
	order, err := optionalInt(m, "order")
	if err != nil {
		return model.Prompt{}, err
	}
	return model.Prompt{
		PromptID: id,
		ScriptID: scriptID,
		Text:     text,
		Type:     typ,
		Order:    order,
		IsActive: decode.Bool(m["is_active"], true),
	}, nil
}

func requiredString(m map[string]any, field string) (string, error) {
	s, ok := m[field].(string)
	if !ok {
		return "", fmt.Errorf("%s must be string", field)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s must not be empty", field)
	}
	return s, nil
}

func optionalString(m map[string]any, field, def string) (string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be string", field)
	}
	return strings.TrimSpace(s), nil
}

// optionalInt truncates JSON numbers toward zero; booleans are rejected.
func optionalInt(m map[string]any, field string) (int64, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be number", field)
	}
	return int64(f), nil
}

// Apply merges every seeded document into the store. With pruneMissing set,
// script and prompt documents absent from the catalog are deleted.
func Apply(ctx context.Context, store docstore.Store, c Catalog, pruneMissing bool) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	res := Result{Scripts: len(c.Scripts), Prompts: len(c.Prompts)}

	scriptIDs := make(map[string]bool, len(c.Scripts))
	for _, s := range c.Scripts {
		if err := store.Merge(ctx, model.ScriptRef(s.ScriptID), s.Doc()); err != nil {
			return res, fmt.Errorf("write script %s: %w", s.ScriptID, err)
		}
		scriptIDs[s.ScriptID] = true
	}
	promptIDs := make(map[string]bool, len(c.Prompts))
	for _, p := range c.Prompts {
		if err := store.Merge(ctx, model.PromptRef(p.PromptID), p.Doc()); err != nil {
			return res, fmt.Errorf("write prompt %s: %w", p.PromptID, err)
		}
		promptIDs[p.PromptID] = true
	}
	logger.InfoContext(ctx, "catalog written", "scripts", res.Scripts, "prompts", res.Prompts)

	if !pruneMissing {
		return res, nil
	}
	var err error
	if res.DeletedScripts, err = deleteMissing(ctx, store, model.CollScripts, scriptIDs); err != nil {
		return res, err
	}
	if res.DeletedPrompts, err = deleteMissing(ctx, store, model.CollPrompts, promptIDs); err != nil {
		return res, err
	}
	logger.InfoContext(ctx, "catalog pruned", "deleted_scripts", res.DeletedScripts, "deleted_prompts", res.DeletedPrompts)
	return res, nil
}

func deleteMissing(ctx context.Context, store docstore.Store, collection string, keep map[string]bool) (int, error) {
	snaps, err := store.Query(ctx, docstore.Query{Collection: collection})
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", collection, err)
	}
	deleted := 0
	for _, snap := range snaps {
		if keep[snap.Ref.ID] {
			continue
		}
		if err := store.Delete(ctx, snap.Ref); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", snap.Ref.Path(), err)
		}
		deleted++
	}
	return deleted, nil
}
