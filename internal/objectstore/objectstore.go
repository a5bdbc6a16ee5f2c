// Package objectstore uploads finished CSV exports to S3, GCS or Azure Blob
// Storage and returns time-limited download URLs.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"metricql/internal/domain"
)

// DefaultURLExpiry is how long a returned download URL stays valid.
const DefaultURLExpiry = 24 * time.Hour

const csvContentType = "text/csv; charset=utf-8"

// Config selects and configures the object store. Location is a URL naming
// the provider, bucket and key prefix: s3://bucket/prefix, gs://bucket/prefix
// or az://container/prefix. An empty Location disables uploads.
type Config struct {
	Location string

	// S3
	Region   string
	Endpoint string
	KeyID    string
	Secret   string
	URLStyle string

	// GCS
	GCSKeyFile string

	// Azure
	AzureAccountName string
	AzureAccountKey  string

	URLExpiry time.Duration
}

// Location is a parsed storage location.
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

// Key returns the object key for fileID under the location prefix.
func (l Location) Key(fileID string) string {
	if l.Prefix == "" {
		return fileID
	}
	return path.Join(l.Prefix, fileID)
}

// ParseLocation parses an s3://, gs:// or az:// URL.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse storage location %q: %w", raw, err)
	}
	switch u.Scheme {
	case "s3", "gs", "az":
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("empty bucket in storage location %q", raw)
	}
	return Location{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// New builds the object store described by cfg.
func New(ctx context.Context, cfg Config) (domain.ObjectStorage, error) {
	if cfg.Location == "" {
		return Disabled{}, nil
	}
	loc, err := ParseLocation(cfg.Location)
	if err != nil {
		return nil, err
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = DefaultURLExpiry
	}
	switch loc.Scheme {
	case "s3":
		return NewS3Store(cfg, loc)
	case "gs":
		return NewGCSStore(ctx, cfg, loc)
	default:
		return NewAzureStore(cfg, loc)
	}
}

// Disabled is the object store used when no location is configured.
type Disabled struct{}

var _ domain.ObjectStorage = Disabled{}

// IsEnabled implements domain.ObjectStorage.
func (Disabled) IsEnabled() bool { return false }

// UploadCSV implements domain.ObjectStorage.
func (Disabled) UploadCSV(context.Context, io.Reader, string) (string, error) {
	return "", fmt.Errorf("object storage is not configured")
}
