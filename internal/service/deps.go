package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_object_store.go -package=mocks moracollect-api/internal/service ObjectStore
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_leaderboard_cache.go -package=mocks moracollect-api/internal/service LeaderboardCache

import (
	"context"
	"time"
)

// ObjectStore is the blob storage the service needs.
// This interface is defined from the service layer's perspective (consumer-first).
type ObjectStore interface {
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
	// DeleteIfExists deletes the object and reports whether it was present.
	DeleteIfExists(ctx context.Context, path string) (bool, error)
	// SignedUploadURL issues a time limited PUT URL bound to contentType.
	SignedUploadURL(ctx context.Context, path, contentType string, expires time.Duration) (string, error)
	// SignedDownloadURL issues a time limited GET URL.
	SignedDownloadURL(ctx context.Context, path string, expires time.Duration) (string, error)
}

// LeaderboardCache stores computed leaderboards for a short time. Entries are
// cached without the per-caller IsMe flag.
type LeaderboardCache interface {
	Get(ctx context.Context, limit int) ([]LeaderboardEntry, bool, error)
	Set(ctx context.Context, limit int, entries []LeaderboardEntry) error
}

// Limits are the size and lifetime limits applied to uploads and URLs.
type Limits struct {
	UploadURLTTL   time.Duration
	DownloadURLTTL time.Duration
	MaxUploadBytes int64
	MaxAvatarBytes int64
}
