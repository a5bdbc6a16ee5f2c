package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"metricql/internal/domain"
)

var _ domain.ObjectStorage = (*GCSStore)(nil)

// GCSStore uploads to Google Cloud Storage and returns signed URLs.
type GCSStore struct {
	client *storage.Client
	loc    Location
	expiry time.Duration
}

// NewGCSStore creates a GCSStore authenticated with a service account key file.
func NewGCSStore(ctx context.Context, cfg Config, loc Location) (*GCSStore, error) {
	if cfg.GCSKeyFile == "" {
		return nil, fmt.Errorf("GCS key file is required")
	}
	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFile))
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, loc: loc, expiry: cfg.URLExpiry}, nil
}

// IsEnabled implements domain.ObjectStorage.
func (s *GCSStore) IsEnabled() bool { return true }

// UploadCSV writes the object and returns a signed GET URL.
func (s *GCSStore) UploadCSV(ctx context.Context, r io.Reader, fileID string) (string, error) {
	key := s.loc.Key(fileID)
	w := s.client.Bucket(s.loc.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = csvContentType
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", fileID)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write GCS object %q/%q: %w", s.loc.Bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close GCS object %q/%q: %w", s.loc.Bucket, key, err)
	}

	signedURL, err := s.client.Bucket(s.loc.Bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.expiry),
	})
	if err != nil {
		return "", fmt.Errorf("sign GetObject for %q/%q: %w", s.loc.Bucket, key, err)
	}
	return signedURL, nil
}
