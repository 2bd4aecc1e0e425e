package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plugin-pipeline/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Static errors to avoid err113 violations
var (
	ErrIncompleteS3Config = errors.New("incomplete S3 configuration")
	ErrEmptyObjectKey     = errors.New("object key must be provided")
)

// S3Store resolves artifact download URLs by presigning GetObject requests
// against an S3-compatible bucket.
type S3Store struct {
	Presigner  *s3.PresignClient
	Bucket     string
	PresignTTL time.Duration
}

// New creates an s3-backed artifact store from configuration.
func New(cfg *config.AppConfig) (*S3Store, error) {
	// check for required S3 configuration
	if strings.TrimSpace(cfg.Artifacts.S3.AccessKey) == "" ||
		strings.TrimSpace(cfg.Artifacts.S3.KeyID) == "" ||
		strings.TrimSpace(cfg.Artifacts.S3.Endpoint) == "" ||
		strings.TrimSpace(cfg.Artifacts.S3.Region) == "" ||
		strings.TrimSpace(cfg.Artifacts.S3.Bucket) == "" ||
		strings.TrimSpace(cfg.Artifacts.S3.PresignTTL) == "" {
		return nil, fmt.Errorf("%w", ErrIncompleteS3Config)
	}

	s3Client := s3.New(s3.Options{
		UsePathStyle: true,
		BaseEndpoint: aws.String(cfg.Artifacts.S3.Endpoint),
		Region:       cfg.Artifacts.S3.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				cfg.Artifacts.S3.KeyID,
				cfg.Artifacts.S3.AccessKey,
				"",
			),
		),
	})

	ttl, err := time.ParseDuration(cfg.Artifacts.S3.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid S3 presign TTL value: %w", err)
	}

	return &S3Store{
		Presigner:  s3.NewPresignClient(s3Client),
		Bucket:     cfg.Artifacts.S3.Bucket,
		PresignTTL: ttl,
	}, nil
}

// DownloadURL presigns a GetObject request for the artifact at objectKey.
func (s *S3Store) DownloadURL(
	ctx context.Context,
	objectKey string,
) (string, error) {
	if objectKey == "" {
		return "", ErrEmptyObjectKey
	}

	presigned, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign artifact download: %w", err)
	}

	return presigned.URL, nil
}
