package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"moracollect-api/internal/contextutil"
	"moracollect-api/internal/validate"
)

// UploadRequest asks for a raw upload URL. RecordID may be empty, in which
// case one is generated.
type UploadRequest struct {
	RecordID    string
	Ext         string
	ContentType string
}

// UploadURL is a signed PUT URL and the headers the client must send with it.
type UploadURL struct {
	RecordID    string
	Path        string
	UploadURL   string
	ContentType string
	ExpiresAt   time.Time
	MaxBytes    int64
}

// IssueUploadURL issues a signed URL for raw/{uid}/{record_id}.{ext}.
func (s *recordService) IssueUploadURL(ctx context.Context, uid string, req UploadRequest) (UploadURL, error) {
	logger := contextutil.LoggerFromContext(ctx)

	recordID := req.RecordID
	if recordID == "" {
		recordID = uuid.NewString()
	}
	recordID, err := validate.RecordID(recordID)
	if err != nil {
		return UploadURL{}, fromValidate(err)
	}
	ext := validate.NormalizeExt(req.Ext)
	contentType, err := validate.ContentType(ext, req.ContentType)
	if err != nil {
		return UploadURL{}, fromValidate(err)
	}

	path := validate.BuildRawPath(uid, recordID, ext)
	if _, err := validate.RawPath(uid, recordID, path); err != nil {
		return UploadURL{}, fromValidate(err)
	}

	expiresAt := time.Now().UTC().Add(s.limits.UploadURLTTL)
	url, err := s.objects.SignedUploadURL(ctx, path, contentType, s.limits.UploadURLTTL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to sign upload url", "raw_path", path, "error", err)
		return UploadURL{}, WrapError(err, "failed to sign upload url")
	}

	logger.InfoContext(ctx, "upload url issued", "record_id", recordID, "raw_path", path)
	return UploadURL{
		RecordID:    recordID,
		Path:        path,
		UploadURL:   url,
		ContentType: contentType,
		ExpiresAt:   expiresAt,
		MaxBytes:    s.limits.MaxUploadBytes,
	}, nil
}
