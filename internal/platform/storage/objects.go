// Package storage writes media objects to Cloud Storage (or a local directory in
// development) and signs direct upload URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// ObjectStore persists rendered media files and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

const mediaCacheControl = "public, max-age=31536000, immutable"

// BucketStore writes to a Cloud Storage bucket.
type BucketStore struct {
	bucket  *gcs.BucketHandle
	name    string
	baseURL string
}

// NewBucketStore serves objects from baseURL when set (a CDN in front of the bucket),
// otherwise from storage.googleapis.com.
func NewBucketStore(client *gcs.Client, bucket, baseURL string) (*BucketStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &BucketStore{bucket: client.Bucket(bucket), name: bucket, baseURL: baseURL}, nil
}

func (s *BucketStore) Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	w := s.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = mediaCacheControl
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: finalize %s: %w", objectPath, err)
	}
	return publicURL(s.baseURL, objectPath), nil
}

// Delete ignores objects that are already gone.
func (s *BucketStore) Delete(ctx context.Context, objectPath string) error {
	err := s.bucket.Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", objectPath, err)
	}
	return nil
}

// DirStore writes objects below a local directory; used with the sqlite store.
type DirStore struct {
	root    string
	baseURL string
}

func NewDirStore(root, baseURL string) (*DirStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "/files"
	}
	return &DirStore{root: root, baseURL: baseURL}, nil
}

// Root is the directory served under the store's base URL.
func (s *DirStore) Root() string { return s.root }

func (s *DirStore) Put(ctx context.Context, objectPath, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: create dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", objectPath, err)
	}
	return publicURL(s.baseURL, objectPath), nil
}

func (s *DirStore) Delete(_ context.Context, objectPath string) error {
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", objectPath, err)
	}
	return nil
}

func (s *DirStore) resolve(objectPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(objectPath)))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("storage: invalid object path %q", objectPath)
	}
	return filepath.Join(s.root, clean), nil
}

func publicURL(base, objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return base + "/" + strings.Join(segments, "/")
}
