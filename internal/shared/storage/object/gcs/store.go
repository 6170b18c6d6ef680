package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"wasteops-backend/internal/shared/storage/object"
)

// Store implements ObjectStore using Google Cloud Storage.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// New creates a GCS-backed object store using application default credentials.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Put streams r into the object at storageKey, replacing any previous generation.
func (s *Store) Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	objectName := object.JoinKey(s.prefix, storageKey)
	w := s.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	written, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("gcs write bucket=%s object=%s: %w", s.name, objectName, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("gcs finalize bucket=%s object=%s: %w", s.name, objectName, err)
	}
	return written, nil
}

// Open returns a reader over the object at storageKey.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objectName := object.JoinKey(s.prefix, storageKey)
	rc, err := s.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs read bucket=%s object=%s: %w", s.name, objectName, err)
	}
	return rc, nil
}

// Exists reports whether an object is stored at storageKey.
func (s *Store) Exists(ctx context.Context, storageKey string) (bool, error) {
	if _, err := s.Size(ctx, storageKey); err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Size returns the object size from its attributes.
func (s *Store) Size(ctx context.Context, storageKey string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	objectName := object.JoinKey(s.prefix, storageKey)
	attrs, err := s.bucket.Object(objectName).Attrs(ctx)
	if err != nil {
		if isNotFound(err) {
			return 0, object.ErrNotFound
		}
		return 0, fmt.Errorf("gcs attrs bucket=%s object=%s: %w", s.name, objectName, err)
	}
	return attrs.Size, nil
}

// Delete removes the object at storageKey.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectName := object.JoinKey(s.prefix, storageKey)
	if err := s.bucket.Object(objectName).Delete(ctx); err != nil {
		if isNotFound(err) {
			return object.ErrNotFound
		}
		return fmt.Errorf("gcs delete bucket=%s object=%s: %w", s.name, objectName, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return true
	}
	return false
}

var _ object.ObjectStore = (*Store)(nil)
