package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Bucket wraps a single Cloud Storage bucket. When STORAGE_EMULATOR_HOST is
// set the client runs unauthenticated against the emulator.
type Bucket struct {
	client *storage.Client
	handle *storage.BucketHandle
	name   string
}

// NewBucket creates a client for the named bucket.
func NewBucket(ctx context.Context, name string) (*Bucket, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	if os.Getenv("STORAGE_EMULATOR_HOST") != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Bucket{client: client, handle: client.Bucket(name), name: name}, nil
}

// Close closes the client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

// Exists reports whether an object is present at path.
func (b *Bucket) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.handle.Object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat gs://%s/%s: %w", b.name, path, err)
	}
	return true, nil
}

// Download copies the object at path into w. A missing object is reported as
// fs.ErrNotExist.
func (b *Bucket) Download(ctx context.Context, path string, w io.Writer) error {
	r, err := b.handle.Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gs://%s/%s: %w", b.name, path, fs.ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("failed to open gs://%s/%s: %w", b.name, path, err)
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to download gs://%s/%s: %w", b.name, path, err)
	}
	return nil
}

// DeleteIfExists deletes the object at path and reports whether it was there.
func (b *Bucket) DeleteIfExists(ctx context.Context, path string) (bool, error) {
	err := b.handle.Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete gs://%s/%s: %w", b.name, path, err)
	}
	return true, nil
}

// SignedUploadURL issues a V4 signed PUT URL. The uploader must send the
// same Content-Type.
func (b *Bucket) SignedUploadURL(_ context.Context, path, contentType string, expires time.Duration) (string, error) {
	url, err := b.handle.SignedURL(path, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(expires),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign upload url for %s: %w", path, err)
	}
	return url, nil
}

// SignedDownloadURL issues a V4 signed GET URL.
func (b *Bucket) SignedDownloadURL(_ context.Context, path string, expires time.Duration) (string, error) {
	url, err := b.handle.SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expires),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign download url for %s: %w", path, err)
	}
	return url, nil
}
