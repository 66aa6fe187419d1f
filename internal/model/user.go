package model

import (
	"time"

	"moracollect-api/internal/decode"
	"moracollect-api/internal/docstore"
)

// RoleCollector is the role given to new users.
const RoleCollector = "collector"

// User is a contributor profile.
type User struct {
	UID               string
	DisplayName       string
	Email             string
	Role              string
	ContributionCount int64
	IsHidden          bool
	AvatarPath        *string
	AvatarID          *string
	AvatarUpdatedAt   *time.Time
	CreatedAt         *time.Time
	UpdatedAt         *time.Time
}

// DecodeUser reads a user document.
func DecodeUser(snap *docstore.Snapshot) User {
	d := snap.Data
	return User{
		UID:               snap.Ref.ID,
		DisplayName:       decode.StringOr(d["display_name"], ""),
		Email:             decode.StringOr(d["email"], ""),
		Role:              decode.StringOr(d["role"], RoleCollector),
		ContributionCount: decode.Count(d["contribution_count"]),
		IsHidden:          decode.Bool(d["is_hidden"], false),
		AvatarPath:        decode.OptString(d["avatar_path"]),
		AvatarID:          decode.OptString(d["avatar_id"]),
		AvatarUpdatedAt:   decode.OptTime(d["avatar_updated_at"]),
		CreatedAt:         decode.OptTime(d["created_at"]),
		UpdatedAt:         decode.OptTime(d["updated_at"]),
	}
}

// NameOrUID is the name shown publicly for the user.
func (u User) NameOrUID() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.UID
}

// NewUserDoc is the profile created on first sight of a uid.
func NewUserDoc(uid, email string) map[string]any {
	doc := map[string]any{
		"uid":                uid,
		"display_name":       "",
		"role":               RoleCollector,
		"contribution_count": 0,
		"is_hidden":          false,
		"created_at":         docstore.ServerTimestamp,
		"updated_at":         docstore.ServerTimestamp,
	}
	if email != "" {
		doc["email"] = email
	}
	return doc
}
