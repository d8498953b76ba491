// Package storage provides the MinIO-backed archive for call
// recordings. The provider's recording URLs are signed and expire, so
// recordings are copied here once and served with presigned links
// afterwards.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"voicecampaign_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL is the expiration time for recording download links.
const PresignedURLTTL = 15 * time.Minute

// RecordingStore implements calls.RecordingArchive on MinIO.
type RecordingStore struct {
	client *minio.Client
	bucket string
}

// NewRecordingStore creates the recording archive. Returns an error
// when MinIO is not configured; callers treat a nil store as archival
// being disabled.
func NewRecordingStore(cfg config.StorageConfig) (*RecordingStore, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &RecordingStore{
		client: client,
		bucket: cfg.GetMinioBucketRecordings(),
	}, nil
}

// EnsureBucket creates the recordings bucket if it doesn't exist.
func (s *RecordingStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// StoreRecording uploads one call recording and returns its object key.
// Keyed by call id so a re-download overwrites instead of duplicating.
func (s *RecordingStore) StoreRecording(ctx context.Context, callID string, body io.Reader, size int64) (string, error) {
	objectKey := fmt.Sprintf("recordings/%s.wav", callID)

	_, err := s.client.PutObject(ctx, s.bucket, objectKey, body, size, minio.PutObjectOptions{
		ContentType: "audio/wav",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload recording %s: %w", objectKey, err)
	}
	return objectKey, nil
}

// RecordingLink creates a presigned download URL for a stored recording.
func (s *RecordingStore) RecordingLink(ctx context.Context, objectKey string) (string, error) {
	reqParams := make(url.Values)

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, PresignedURLTTL, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return presignedURL.String(), nil
}
