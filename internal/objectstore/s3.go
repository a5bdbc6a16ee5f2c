package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"metricql/internal/domain"
)

var _ domain.ObjectStorage = (*S3Store)(nil)

// S3Store uploads to S3 or an S3-compatible endpoint.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	loc           Location
	expiry        time.Duration
}

// NewS3Store creates an S3Store with static credentials. Path-style
// addressing is used unless URLStyle is "vhost".
func NewS3Store(cfg Config, loc Location) (*S3Store, error) {
	if cfg.KeyID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("S3 key id and secret are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.KeyID, cfg.Secret, "",
		),
		UsePathStyle:               cfg.URLStyle != "vhost",
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	client := s3.New(opts)

	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		loc:           loc,
		expiry:        cfg.URLExpiry,
	}, nil
}

// IsEnabled implements domain.ObjectStorage.
func (s *S3Store) IsEnabled() bool { return true }

// UploadCSV puts the file and returns a presigned GET URL.
func (s *S3Store) UploadCSV(ctx context.Context, r io.Reader, fileID string) (string, error) {
	key := s.loc.Key(fileID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.loc.Bucket),
		Key:                aws.String(key),
		Body:               r,
		ContentType:        aws.String(csvContentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", fileID)),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q/%q: %w", s.loc.Bucket, key, err)
	}

	result, err := s.presignClient.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.loc.Bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(s.expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign GetObject for %q/%q: %w", s.loc.Bucket, key, err)
	}
	return result.URL, nil
}
