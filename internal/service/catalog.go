package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_catalog_service.go -package=mocks -mock_names=CatalogService=MockCatalogService moracollect-api/internal/service CatalogService

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
	"moracollect-api/internal/validate"
)

// Where a listing was read from.
const (
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
)

// ScriptList is the list of active scripts with their statistics.
type ScriptList struct {
	Scripts []model.ScriptEntry
	Source  string
}

// PromptList is the list of active prompts of one script.
type PromptList struct {
	ScriptID string
	Prompts  []model.PromptEntry
	Source   string
}

// CatalogService lists scripts and prompts with their statistics.
type CatalogService interface {
	// ListScripts returns active scripts ordered by (order, title, id).
	ListScripts(ctx context.Context) (ScriptList, error)
	// ListPrompts returns the active prompts of an active script ordered by
	// (order, id).
	ListPrompts(ctx context.Context, scriptID string) (PromptList, error)
}

type catalogService struct {
	store docstore.Store
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store docstore.Store) CatalogService {
	return &catalogService{store: store}
}

// ListScripts reads the overview snapshot and falls back to live
// aggregation when it is missing or malformed.
func (s *catalogService) ListScripts(ctx context.Context) (ScriptList, error) {
	logger := contextutil.LoggerFromContext(ctx)

	snap, err := s.store.Get(ctx, model.ScriptsOverviewRef())
	if err != nil {
		logger.WarnContext(ctx, "scripts snapshot unreadable, using live data", "error", err)
	} else if entries, ok := scriptEntries(snap); ok {
		sortScripts(entries)
		return ScriptList{Scripts: entries, Source: SourceSnapshot}, nil
	}

	entries, err := s.liveScripts(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list scripts", "error", err)
		return ScriptList{}, WrapError(err, "failed to list scripts")
	}
	sortScripts(entries)
	return ScriptList{Scripts: entries, Source: SourceLive}, nil
}

// scriptEntries decodes the active entries of the overview snapshot. ok is
// false when the snapshot is missing, its map field is not a map, or any
// entry is not a map.
func scriptEntries(snap *docstore.Snapshot) ([]model.ScriptEntry, bool) {
	if !snap.Exists() {
		return nil, false
	}
	m, ok := snap.Get(model.FieldScriptsMap).(map[string]any)
	if !ok {
		return nil, false
	}
	entries := make([]model.ScriptEntry, 0, len(m))
	for id, v := range m {
		e, ok := model.DecodeScriptEntry(id, v)
		if !ok {
			return nil, false
		}
		if e.IsActive {
			entries = append(entries, e)
		}
	}
	return entries, true
}

func (s *catalogService) liveScripts(ctx context.Context) ([]model.ScriptEntry, error) {
	var scripts []*docstore.Snapshot
	var prompts []*docstore.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scripts, err = s.store.Query(gctx, docstore.Query{Collection: model.CollScripts})
		return err
	})
	g.Go(func() error {
		var err error
		prompts, err = s.store.Query(gctx, docstore.Query{Collection: model.CollPrompts})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	promptCounts := make(map[string]int64)
	for _, snap := range prompts {
		p := model.DecodePrompt(snap)
		if p.IsActive {
			promptCounts[p.ScriptID]++
		}
	}

	var active []model.Script
	var refs []docstore.Ref
	for _, snap := range scripts {
		sc := model.DecodeScript(snap)
		if !sc.IsActive {
			continue
		}
		active = append(active, sc)
		refs = append(refs, model.ScriptStatsRef(sc.ScriptID))
	}
	statSnaps, err := getAll(ctx, s.store, refs)
	if err != nil {
		return nil, err
	}

	entries := make([]model.ScriptEntry, 0, len(active))
	for i, sc := range active {
		st := model.DecodeStats(statSnaps[i])
		entries = append(entries, model.ScriptEntry{
			ScriptID:       sc.ScriptID,
			Title:          sc.Title,
			Description:    sc.Description,
			Order:          sc.Order,
			IsActive:       true,
			PromptCount:    promptCounts[sc.ScriptID],
			TotalRecords:   st.TotalRecords,
			UniqueSpeakers: st.UniqueSpeakers,
		})
	}
	return entries, nil
}

func sortScripts(entries []model.ScriptEntry) {
	slices.SortFunc(entries, func(a, b model.ScriptEntry) int {
		return cmp.Or(
			cmp.Compare(a.Order, b.Order),
			cmp.Compare(a.Title, b.Title),
			cmp.Compare(a.ScriptID, b.ScriptID),
		)
	})
}

// ListPrompts reads the script's prompt snapshot, repairing entries without
// text from the prompt documents, and falls back to live data when the
// snapshot is missing or malformed.
func (s *catalogService) ListPrompts(ctx context.Context, scriptID string) (PromptList, error) {
	logger := contextutil.LoggerFromContext(ctx)

	id, err := validate.Slug("script_id", scriptID)
	if err != nil {
		return PromptList{}, fromValidate(err)
	}
	logger = logger.With("script_id", id)

	scriptSnap, err := s.store.Get(ctx, model.ScriptRef(id))
	if err != nil {
		logger.ErrorContext(ctx, "failed to read script", "error", err)
		return PromptList{}, WrapError(err, "failed to read script")
	}
	if !scriptSnap.Exists() || !model.DecodeScript(scriptSnap).IsActive {
		return PromptList{}, notFound("Script not found")
	}

	snap, err := s.store.Get(ctx, model.PromptsByScriptRef(id))
	if err != nil {
		logger.WarnContext(ctx, "prompts snapshot unreadable, using live data", "error", err)
	} else if entries, ok := promptEntries(snap); ok {
		if err := s.repairText(ctx, entries); err != nil {
			logger.ErrorContext(ctx, "failed to repair prompt text", "error", err)
			return PromptList{}, WrapError(err, "failed to list prompts")
		}
		sortPrompts(entries)
		return PromptList{ScriptID: id, Prompts: entries, Source: SourceSnapshot}, nil
	}

	entries, err := s.livePrompts(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list prompts", "error", err)
		return PromptList{}, WrapError(err, "failed to list prompts")
	}
	sortPrompts(entries)
	return PromptList{ScriptID: id, Prompts: entries, Source: SourceLive}, nil
}

// promptEntries is scriptEntries for a prompts-by-script snapshot.
func promptEntries(snap *docstore.Snapshot) ([]model.PromptEntry, bool) {
	if !snap.Exists() {
		return nil, false
	}
	m, ok := snap.Get(model.FieldPromptsMap).(map[string]any)
	if !ok {
		return nil, false
	}
	entries := make([]model.PromptEntry, 0, len(m))
	for id, v := range m {
		e, ok := model.DecodePromptEntry(id, v)
		if !ok {
			return nil, false
		}
		if e.IsActive {
			entries = append(entries, e)
		}
	}
	return entries, true
}

// repairText fills in missing prompt text from the prompt documents.
func (s *catalogService) repairText(ctx context.Context, entries []model.PromptEntry) error {
	var idx []int
	var refs []docstore.Ref
	for i, e := range entries {
		if e.Text == "" {
			idx = append(idx, i)
			refs = append(refs, model.PromptRef(e.PromptID))
		}
	}
	snaps, err := getAll(ctx, s.store, refs)
	if err != nil {
		return err
	}
	for j, snap := range snaps {
		if snap.Exists() {
			entries[idx[j]].Text = model.DecodePrompt(snap).Text
		}
	}
	return nil
}

func (s *catalogService) livePrompts(ctx context.Context, scriptID string) ([]model.PromptEntry, error) {
	prompts, err := activePrompts(ctx, s.store, scriptID)
	if err != nil {
		return nil, err
	}
	refs := make([]docstore.Ref, len(prompts))
	for i, p := range prompts {
		refs[i] = model.PromptStatsRef(p.PromptID)
	}
	statSnaps, err := getAll(ctx, s.store, refs)
	if err != nil {
		return nil, err
	}

	entries := make([]model.PromptEntry, 0, len(prompts))
	for i, p := range prompts {
		st := model.DecodeStats(statSnaps[i])
		entries = append(entries, model.PromptEntry{
			PromptID:       p.PromptID,
			Text:           p.Text,
			Order:          p.Order,
			IsActive:       true,
			TotalRecords:   st.TotalRecords,
			UniqueSpeakers: st.UniqueSpeakers,
		})
	}
	return entries, nil
}

func sortPrompts(entries []model.PromptEntry) {
	slices.SortFunc(entries, func(a, b model.PromptEntry) int {
		return cmp.Or(
			cmp.Compare(a.Order, b.Order),
			cmp.Compare(a.PromptID, b.PromptID),
		)
	})
}

// activePrompts returns the active prompts of a script. is_active may be
// absent, so the filter runs in memory.
func activePrompts(ctx context.Context, store docstore.Store, scriptID string) ([]model.Prompt, error) {
	snaps, err := store.Query(ctx, docstore.Query{Collection: model.CollPrompts}.Where("script_id", scriptID))
	if err != nil {
		return nil, err
	}
	var out []model.Prompt
	for _, snap := range snaps {
		if p := model.DecodePrompt(snap); p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func getAll(ctx context.Context, store docstore.Store, refs []docstore.Ref) ([]*docstore.Snapshot, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	return store.GetAll(ctx, refs)
}
