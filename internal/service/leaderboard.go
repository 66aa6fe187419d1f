package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_leaderboard_service.go -package=mocks -mock_names=LeaderboardService=MockLeaderboardService moracollect-api/internal/service LeaderboardService

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 50

	minLeaderboardFetch = 100
	maxLeaderboardFetch = 500

	avatarLookups = 8
)

// LeaderboardEntry is one ranked contributor.
type LeaderboardEntry struct {
	Rank              int
	UID               string
	DisplayName       string
	ContributionCount int64
	AvatarURL         string
	IsMe              bool
}

// LeaderboardService ranks contributors.
type LeaderboardService interface {
	// Top returns up to limit contributors with dense ranks. Entries of uid
	// are flagged IsMe.
	Top(ctx context.Context, uid string, limit int) ([]LeaderboardEntry, error)
}

type leaderboardService struct {
	store   docstore.Store
	objects ObjectStore
	cache   LeaderboardCache
	limits  Limits
}

// NewLeaderboardService creates a new LeaderboardService. cache may be nil.
func NewLeaderboardService(store docstore.Store, objects ObjectStore, cache LeaderboardCache, limits Limits) LeaderboardService {
	return &leaderboardService{
		store:   store,
		objects: objects,
		cache:   cache,
		limits:  limits,
	}
}

// Top reads the users with the highest contribution counts, drops hidden
// and zero-count users, and ranks the rest.
func (s *leaderboardService) Top(ctx context.Context, uid string, limit int) ([]LeaderboardEntry, error) {
	logger := contextutil.LoggerFromContext(ctx)

	limit = LeaderboardLimit(limit)

	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx, limit)
		if err != nil {
			logger.WarnContext(ctx, "leaderboard cache read failed", "error", err)
		} else if ok {
			return markMe(entries, uid), nil
		}
	}

	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: model.CollUsers,
		OrderBy:    "contribution_count",
		Direction:  docstore.Desc,
		Limit:      min(max(limit*10, minLeaderboardFetch), maxLeaderboardFetch),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to read users", "error", err)
		return nil, WrapError(err, "failed to read leaderboard")
	}

	users := make([]model.User, 0, len(snaps))
	for _, snap := range snaps {
		u := model.DecodeUser(snap)
		if u.ContributionCount <= 0 || u.IsHidden {
			continue
		}
		users = append(users, u)
	}
	entries := Rank(users, limit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(avatarLookups)
	for i, u := range users[:len(entries)] {
		if u.AvatarPath == nil {
			continue
		}
		g.Go(func() error {
			url, err := avatarURL(gctx, s.objects, *u.AvatarPath, s.limits.DownloadURLTTL)
			if err != nil {
				logger.WarnContext(ctx, "failed to resolve avatar", "uid", u.UID, "error", err)
				return nil
			}
			entries[i].AvatarURL = url
			return nil
		})
	}
	_ = g.Wait()

	if s.cache != nil {
		if err := s.cache.Set(ctx, limit, entries); err != nil {
			logger.WarnContext(ctx, "leaderboard cache write failed", "error", err)
		}
	}
	return markMe(entries, uid), nil
}

// LeaderboardLimit clamps a requested leaderboard size; values below one
// select the default.
func LeaderboardLimit(limit int) int {
	if limit <= 0 {
		return defaultLeaderboardLimit
	}
	return min(limit, maxLeaderboardLimit)
}

// Rank sorts users by (-contribution_count, lower(display name), uid) in
// place and returns dense 1-based ranks for the first limit of them. Equal
// counts share a rank.
func Rank(users []model.User, limit int) []LeaderboardEntry {
	slices.SortFunc(users, func(a, b model.User) int {
		return cmp.Or(
			cmp.Compare(b.ContributionCount, a.ContributionCount),
			cmp.Compare(strings.ToLower(a.NameOrUID()), strings.ToLower(b.NameOrUID())),
			cmp.Compare(a.UID, b.UID),
		)
	})

	n := min(limit, len(users))
	entries := make([]LeaderboardEntry, 0, n)
	rank := 0
	for i, u := range users[:n] {
		if i == 0 || u.ContributionCount != users[i-1].ContributionCount {
			rank++
		}
		entries = append(entries, LeaderboardEntry{
			Rank:              rank,
			UID:               u.UID,
			DisplayName:       u.NameOrUID(),
			ContributionCount: u.ContributionCount,
		})
	}
	return entries
}

func markMe(entries []LeaderboardEntry, uid string) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		e.IsMe = e.UID == uid
		out[i] = e
	}
	return out
}
