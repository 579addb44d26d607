package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/isdmx/vibebox/config"
)

// Defaults used when the configuration leaves a value unset
const (
	DefaultBucket         = "vibecoder-files"
	DefaultRegion         = "us-east-1"
	DefaultPresignTTL     = 60 * time.Second
	DefaultMaxObjectBytes = 8 << 20
)

// ErrObjectTooLarge is returned when an object exceeds the configured size cap
var ErrObjectTooLarge = errors.New("object too large")

// MinIOStore reads objects from one bucket of an S3-compatible service
type MinIOStore struct {
	client         *minio.Client
	httpClient     *http.Client
	bucket         string
	presignTTL     time.Duration
	maxObjectBytes int64
}

// Option defines a functional option for MinIOStore
type Option func(*MinIOStore)

// WithHTTPClient sets the client used to follow presigned URLs
func WithHTTPClient(client *http.Client) Option {
	return func(s *MinIOStore) {
		s.httpClient = client
	}
}

// NewMinIOStore creates a store for the configured endpoint and bucket.
// The region is fixed up front so presigning never needs a network call.
func NewMinIOStore(cfg config.StorageConfig, opts ...Option) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint is required")
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}

	store := &MinIOStore{
		client:         client,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		bucket:         cfg.Bucket,
		presignTTL:     time.Duration(cfg.PresignTTLSec) * time.Second,
		maxObjectBytes: cfg.MaxObjectBytes,
	}
	if store.bucket == "" {
		store.bucket = DefaultBucket
	}
	if store.presignTTL <= 0 {
		store.presignTTL = DefaultPresignTTL
	}
	if store.maxObjectBytes <= 0 {
		store.maxObjectBytes = DefaultMaxObjectBytes
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// Bucket returns the bucket objects are read from
func (s *MinIOStore) Bucket() string {
	return s.bucket
}

// PresignGet returns a GET URL for key valid for expiry.
// A non-positive expiry uses the configured default.
func (s *MinIOStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	if key == "" {
		return nil, errors.New("object key is required")
	}
	if expiry <= 0 {
		expiry = s.presignTTL
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("minio presign get object failed: %w", err)
	}
	return u, nil
}

// GetReadableText fetches the object at key through a presigned URL and
// returns its body as text
func (s *MinIOStore) GetReadableText(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.PresignGet(ctx, key, expiry)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("building object request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching object %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching object %s: unexpected status %s", key, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxObjectBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading object %s: %w", key, err)
	}
	if int64(len(body)) > s.maxObjectBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrObjectTooLarge, key, s.maxObjectBytes)
	}

	return string(body), nil
}
