package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cleanmap/reports-service/internal/config"
	"github.com/cleanmap/reports-service/internal/types"
)

// Service stores normalized report photos in a MinIO bucket.
type Service struct {
	client     *minio.Client
	bucketName string
	useSSL     bool
}

// NewService creates a new media service instance
func NewService(cfg *config.Config) (*Service, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	service := &Service{
		client:     client,
		bucketName: cfg.MinIO.BucketName,
		useSSL:     cfg.MinIO.UseSSL,
	}

	if err := service.ensureBucket(); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return service, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Service) ensureBucket() error {
	ctx := context.Background()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StorePhoto writes a normalized photo to the bucket and returns its
// object key. Keys are grouped by author so ownership is visible in
// the object path.
func (s *Service) StorePhoto(ctx context.Context, authorID string, photo *types.NormalizedPhoto) (string, error) {
	objectKey := fmt.Sprintf("reports/%s/%s.jpg", authorID, uuid.NewString())

	_, err := s.client.PutObject(
		ctx,
		s.bucketName,
		objectKey,
		bytes.NewReader(photo.Data),
		int64(len(photo.Data)),
		minio.PutObjectOptions{ContentType: photo.ContentType},
	)
	if err != nil {
		return "", fmt.Errorf("failed to store photo: %w", err)
	}

	return objectKey, nil
}

// RemovePhoto deletes a stored photo object.
func (s *Service) RemovePhoto(ctx context.Context, objectKey string) error {
	return s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{})
}

// PhotoURL returns the public URL for a stored photo (if the bucket is
// public). In production this would typically be a CDN URL instead.
func (s *Service) PhotoURL(objectKey string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}

	endpoint := strings.TrimPrefix(s.client.EndpointURL().String(), scheme+"://")
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, s.bucketName, objectKey)
}
