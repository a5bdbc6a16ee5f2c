package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"metricql/internal/domain"
)

var _ domain.ObjectStorage = (*AzureStore)(nil)

// AzureStore uploads to Azure Blob Storage and returns SAS URLs. Only
// shared-key authentication is supported.
type AzureStore struct {
	client *azblob.Client
	loc    Location
	expiry time.Duration
}

// NewAzureStore creates an AzureStore. The location bucket is the container.
func NewAzureStore(cfg Config, loc Location) (*AzureStore, error) {
	if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
		return nil, fmt.Errorf("Azure account name and key are required")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client, loc: loc, expiry: cfg.URLExpiry}, nil
}

// IsEnabled implements domain.ObjectStorage.
func (s *AzureStore) IsEnabled() bool { return true }

// UploadCSV streams the blob and returns a read-only SAS URL.
func (s *AzureStore) UploadCSV(ctx context.Context, r io.Reader, fileID string) (string, error) {
	key := s.loc.Key(fileID)
	if _, err := s.client.UploadStream(ctx, s.loc.Bucket, key, r, nil); err != nil {
		return "", fmt.Errorf("upload blob %q/%q: %w", s.loc.Bucket, key, err)
	}
	blobClient := s.client.ServiceClient().NewContainerClient(s.loc.Bucket).NewBlobClient(key)
	sasURL, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(s.expiry), nil)
	if err != nil {
		return "", fmt.Errorf("generate SAS URL for %q/%q: %w", s.loc.Bucket, key, err)
	}
	return sasURL, nil
}
