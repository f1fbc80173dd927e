// Package storage persists generated story assets (illustrations, thumbnails,
// compiled videos, keepsake bundles) in S3 and hands out pre-signed URLs so
// clients never need AWS credentials.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultURLExpiry is how long pre-signed asset URLs stay valid.
const DefaultURLExpiry = 24 * time.Hour

// Store wraps an S3 bucket used for story assets.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New creates a Store over the given bucket.
func New(cfg aws.Config, bucket string) *Store {
	client := s3.NewFromConfig(cfg)
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// Bucket returns the bucket name the store writes to.
func (s *Store) Bucket() string {
	return s.bucket
}

// Upload writes an object and returns a pre-signed GET URL for it.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	log.Debug().
		Str("bucket", s.bucket).
		Str("key", key).
		Int("size", len(data)).
		Msg("Uploading asset to S3")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	url, err := s.PresignGet(ctx, key, DefaultURLExpiry)
	if err != nil {
		return "", err
	}

	log.Info().Str("key", key).Msg("Asset uploaded to S3")
	return url, nil
}

// Exists reports whether an object is present and readable. Any HeadObject
// failure (missing key, expired object, permission change) counts as absent.
func (s *Store) Exists(ctx context.Context, key string) bool {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		log.Debug().Str("key", key).Err(err).Msg("Asset not resolvable")
		return false
	}
	return true
}

// Download fetches an object's full contents.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read S3 object %s: %w", key, err)
	}
	return data, nil
}

// PresignGet creates a pre-signed GET URL for an object.
func (s *Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject %s: %w", key, err)
	}
	return result.URL, nil
}
