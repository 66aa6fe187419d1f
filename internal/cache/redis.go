// Package cache keeps short lived copies of expensive reads in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"moracollect-api/internal/service"
)

// NewRedisClient creates a client for addr and checks that it answers.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// Leaderboard caches ranked leaderboard entries per limit.
type Leaderboard struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ service.LeaderboardCache = (*Leaderboard)(nil)

// NewLeaderboard creates a Leaderboard cache whose entries expire after ttl.
func NewLeaderboard(rdb *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{rdb: rdb, ttl: ttl}
}

type cachedEntry struct {
	Rank              int    `json:"rank"`
	UID               string `json:"uid"`
	DisplayName       string `json:"display_name"`
	ContributionCount int64  `json:"contribution_count"`
	AvatarURL         string `json:"avatar_url,omitempty"`
}

func leaderboardKey(limit int) string {
	return fmt.Sprintf("leaderboard:v1:%d", limit)
}

// Get returns the cached entries for limit. ok is false on a miss.
func (c *Leaderboard) Get(ctx context.Context, limit int) ([]service.LeaderboardEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, leaderboardKey(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}

	var cached []cachedEntry
	if err := json.Unmarshal(raw, &cached); err != nil {
		// unreadable entries are treated as a miss and overwritten on Set
		return nil, false, nil
	}
	entries := make([]service.LeaderboardEntry, len(cached))
	for i, e := range cached {
		entries[i] = service.LeaderboardEntry{
			Rank:              e.Rank,
			UID:               e.UID,
			DisplayName:       e.DisplayName,
			ContributionCount: e.ContributionCount,
			AvatarURL:         e.AvatarURL,
		}
	}
	return entries, true, nil
}

// Set stores entries for limit. The per caller IsMe flag is not stored.
func (c *Leaderboard) Set(ctx context.Context, limit int, entries []service.LeaderboardEntry) error {
	cached := make([]cachedEntry, len(entries))
	for i, e := range entries {
		cached[i] = cachedEntry{
			Rank:              e.Rank,
			UID:               e.UID,
			DisplayName:       e.DisplayName,
			ContributionCount: e.ContributionCount,
			AvatarURL:         e.AvatarURL,
		}
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	if err := c.rdb.Set(ctx, leaderboardKey(limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write leaderboard cache: %w", err)
	}
	return nil
}
