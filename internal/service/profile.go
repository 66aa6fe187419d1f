package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_profile_service.go -package=mocks -mock_names=ProfileService=MockProfileService moracollect-api/internal/service ProfileService

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/model"
	"moracollect-api/internal/validate"
)

const maxDisplayNameRunes = 40

// Profile is the caller's user document plus a view URL for the avatar.
type Profile struct {
	User      model.User
	AvatarURL string
}

// ProfileUpdate changes profile fields; nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string
	IsHidden    *bool
}

// AvatarUpload is a signed PUT URL for a new avatar image.
type AvatarUpload struct {
	AvatarID    string
	Path        string
	UploadURL   string
	ContentType string
	ExpiresAt   time.Time
	MaxBytes    int64
}

// ProfileService reads and edits the caller's profile.
type ProfileService interface {
	// Get returns the profile, creating it on first sight of uid.
	Get(ctx context.Context, uid, email string) (Profile, error)
	// Update applies a profile update.
	Update(ctx context.Context, uid, email string, req ProfileUpdate) (Profile, error)
	// IssueAvatarUpload issues a signed URL for a new avatar object.
	IssueAvatarUpload(ctx context.Context, uid string) (AvatarUpload, error)
	// CommitAvatar points the profile at an uploaded avatar and removes the
	// previous avatar object.
	CommitAvatar(ctx context.Context, uid, email, avatarID, path string) (Profile, error)
}

type profileService struct {
	store   docstore.Store
	objects ObjectStore
	limits  Limits
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store docstore.Store, objects ObjectStore, limits Limits) ProfileService {
	return &profileService{
		store:   store,
		objects: objects,
		limits:  limits,
	}
}

// Get returns the caller's profile.
func (s *profileService) Get(ctx context.Context, uid, email string) (Profile, error) {
	if err := s.ensureUser(ctx, uid, email); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to create profile", "error", err)
		return Profile{}, WrapError(err, "failed to create profile")
	}
	return s.load(ctx, uid)
}

// ensureUser creates users/{uid} when it does not exist yet.
func (s *profileService) ensureUser(ctx context.Context, uid, email string) error {
	ref := model.UserRef(uid)
	snap, err := s.store.Get(ctx, ref)
	if err != nil {
		return err
	}
	if snap.Exists() {
		return nil
	}
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return err
		}
		if snap.Exists() {
			return nil
		}
		return tx.Set(ref, model.NewUserDoc(uid, email))
	})
}

func (s *profileService) load(ctx context.Context, uid string) (Profile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	snap, err := s.store.Get(ctx, model.UserRef(uid))
	if err != nil {
		logger.ErrorContext(ctx, "failed to read profile", "error", err)
		return Profile{}, WrapError(err, "failed to read profile")
	}
	if !snap.Exists() {
		return Profile{}, notFound("Profile not found")
	}
	p := Profile{User: model.DecodeUser(snap)}
	if p.User.AvatarPath != nil {
		url, err := avatarURL(ctx, s.objects, *p.User.AvatarPath, s.limits.DownloadURLTTL)
		if err != nil {
			logger.WarnContext(ctx, "failed to resolve avatar", "avatar_path", *p.User.AvatarPath, "error", err)
		}
		p.AvatarURL = url
	}
	return p, nil
}

// Update validates and applies the update.
func (s *profileService) Update(ctx context.Context, uid, email string, req ProfileUpdate) (Profile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.DisplayName == nil && req.IsHidden == nil {
		return Profile{}, &ValidationError{Field: "body", Message: "display_name or is_hidden is required"}
	}
	patch := map[string]any{"updated_at": docstore.ServerTimestamp}
	if req.DisplayName != nil {
		name, err := DisplayName(*req.DisplayName)
		if err != nil {
			return Profile{}, err
		}
		patch["display_name"] = name
	}
	if req.IsHidden != nil {
		patch["is_hidden"] = *req.IsHidden
	}

	if err := s.ensureUser(ctx, uid, email); err != nil {
		logger.ErrorContext(ctx, "failed to create profile", "error", err)
		return Profile{}, WrapError(err, "failed to create profile")
	}
	if err := s.store.Merge(ctx, model.UserRef(uid), patch); err != nil {
		logger.ErrorContext(ctx, "failed to update profile", "error", err)
		return Profile{}, WrapError(err, "failed to update profile")
	}

	logger.InfoContext(ctx, "profile updated", "display_name_set", req.DisplayName != nil, "is_hidden_set", req.IsHidden != nil)
	return s.load(ctx, uid)
}

// DisplayName trims a display name and checks it is 1 to 40 characters.
func DisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", &ValidationError{Field: "display_name", Message: "cannot be empty"}
	}
	if utf8.RuneCountInString(name) > maxDisplayNameRunes {
		return "", &ValidationError{Field: "display_name", Message: "must be at most 40 characters"}
	}
	return name, nil
}

// IssueAvatarUpload issues a signed URL for avatars/{uid}/{avatar_id}.webp.
func (s *profileService) IssueAvatarUpload(ctx context.Context, uid string) (AvatarUpload, error) {
	logger := contextutil.LoggerFromContext(ctx)

	avatarID := uuid.NewString()
	path := validate.BuildAvatarPath(uid, avatarID)
	if _, err := validate.AvatarPath(uid, avatarID, path); err != nil {
		return AvatarUpload{}, fromValidate(err)
	}

	expiresAt := time.Now().UTC().Add(s.limits.UploadURLTTL)
	url, err := s.objects.SignedUploadURL(ctx, path, validate.AvatarContentType, s.limits.UploadURLTTL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to sign avatar upload url", "avatar_path", path, "error", err)
		return AvatarUpload{}, WrapError(err, "failed to sign avatar upload url")
	}
	return AvatarUpload{
		AvatarID:    avatarID,
		Path:        path,
		UploadURL:   url,
		ContentType: validate.AvatarContentType,
		ExpiresAt:   expiresAt,
		MaxBytes:    s.limits.MaxAvatarBytes,
	}, nil
}

// CommitAvatar records an uploaded avatar on the profile.
func (s *profileService) CommitAvatar(ctx context.Context, uid, email, avatarID, path string) (Profile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	id, err := validate.AvatarID(avatarID)
	if err != nil {
		return Profile{}, fromValidate(err)
	}
	if path, err = validate.AvatarPath(uid, id, path); err != nil {
		return Profile{}, fromValidate(err)
	}
	logger = logger.With("avatar_id", id, "avatar_path", path)

	ok, err := s.objects.Exists(ctx, path)
	if err != nil {
		logger.ErrorContext(ctx, "failed to check avatar object", "error", err)
		return Profile{}, WrapError(err, "failed to check avatar object")
	}
	if !ok {
		return Profile{}, notFound("Uploaded avatar not found")
	}

	if err := s.ensureUser(ctx, uid, email); err != nil {
		logger.ErrorContext(ctx, "failed to create profile", "error", err)
		return Profile{}, WrapError(err, "failed to create profile")
	}

	var previous string
	ref := model.UserRef(uid)
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return err
		}
		previous = ""
		if p := model.DecodeUser(snap).AvatarPath; p != nil {
			previous = *p
		}
		return tx.Merge(ref, map[string]any{
			"avatar_path":       path,
			"avatar_id":         id,
			"avatar_updated_at": docstore.ServerTimestamp,
			"updated_at":        docstore.ServerTimestamp,
		})
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to commit avatar", "error", err)
		return Profile{}, WrapError(err, "failed to commit avatar")
	}

	if previous != "" && previous != path {
		if _, err := s.objects.DeleteIfExists(ctx, previous); err != nil {
			logger.WarnContext(ctx, "failed to delete previous avatar", "previous_path", previous, "error", err)
		}
	}

	logger.InfoContext(ctx, "avatar committed")
	return s.load(ctx, uid)
}

// avatarURL signs a view URL for an avatar object, or returns "" when the
// object is gone.
func avatarURL(ctx context.Context, objects ObjectStore, path string, ttl time.Duration) (string, error) {
	ok, err := objects.Exists(ctx, path)
	if err != nil || !ok {
		return "", err
	}
	return objects.SignedDownloadURL(ctx, path, ttl)
}
