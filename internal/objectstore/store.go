// Package objectstore wraps an S3-compatible store with the put/delete/presign
// operations the file service needs.
//
// Public and private objects live in two separate buckets whose access policy is
// fixed when the bucket is ensured: the public bucket allows anonymous s3:GetObject,
// the private bucket carries no policy and is only readable through presigned URLs.
// Writes never touch bucket policy.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultPresignTTL is used when callers do not ask for a specific expiry.
	DefaultPresignTTL = time.Hour
	// MaxPresignTTL is the longest expiry S3 signature v4 accepts.
	MaxPresignTTL = 7 * 24 * time.Hour
)

// client is the subset of *minio.Client used by Store.
type client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Config names the buckets and the base URL used to build direct object URLs.
type Config struct {
	PublicBucket  string
	PrivateBucket string
	Region        string
	// BaseURL is scheme://host[:port] of the store or a CDN in front of it.
	BaseURL string
}

// Store is safe for concurrent use.
type Store struct {
	client client
	cfg    Config

	ensureGroup singleflight.Group
	mu          sync.Mutex
	ensured     map[string]bool
}

// New constructs a Store over a minio client.
func New(c client, cfg Config) *Store {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Store{
		client:  c,
		cfg:     cfg,
		ensured: make(map[string]bool),
	}
}

// BucketFor returns the bucket that holds objects of the given visibility.
func (s *Store) BucketFor(private bool) string {
	if private {
		return s.cfg.PrivateBucket
	}
	return s.cfg.PublicBucket
}

// ObjectURL returns the direct (unsigned) URL of an object, path-style.
func (s *Store) ObjectURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.cfg.BaseURL, bucket, escapeKey(key))
}

// Put writes an object into the bucket matching its visibility, ensuring the
// bucket first, and returns the object's direct URL.
func (s *Store) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string, private bool) (string, error) {
	if err := s.ensureOnce(ctx, bucket, private); err != nil {
		return "", err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", wrapError(err, ErrUploadFailed)
	}

	return s.ObjectURL(bucket, key), nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return wrapError(err, ErrDeleteFailed)
	}
	return nil
}

// Presign returns a GET URL valid for ttl regardless of the object's visibility.
// Callers decide whether an object should be presigned at all.
func (s *Store) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	if ttl < time.Second || ttl > MaxPresignTTL {
		return "", fmt.Errorf("%w: expiry %s outside [1s, %s]", ErrInvalidExpiry, ttl, MaxPresignTTL)
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", wrapError(err, ErrPresignFailed)
	}
	return u.String(), nil
}

// EnsureBucket creates the bucket when missing and applies its visibility policy.
func (s *Store) EnsureBucket(ctx context.Context, bucket string, private bool) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket %q: %v", ErrBucketUnavailable, bucket, err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			resp := minio.ToErrorResponse(err)
			if resp.Code != "BucketAlreadyOwnedByYou" && resp.Code != "BucketAlreadyExists" {
				return fmt.Errorf("%w: create bucket %q: %v", ErrBucketUnavailable, bucket, err)
			}
		}
	}

	policy := ""
	if !private {
		policy = publicReadPolicy(bucket)
	}
	if err := s.client.SetBucketPolicy(ctx, bucket, policy); err != nil {
		return fmt.Errorf("%w: set policy on %q: %v", ErrBucketUnavailable, bucket, err)
	}

	s.mu.Lock()
	s.ensured[bucket] = true
	s.mu.Unlock()
	return nil
}

// EnsureBuckets ensures both configured buckets.
func (s *Store) EnsureBuckets(ctx context.Context) error {
	if err := s.EnsureBucket(ctx, s.cfg.PublicBucket, false); err != nil {
		return err
	}
	return s.EnsureBucket(ctx, s.cfg.PrivateBucket, true)
}

// Ping reports whether the store is reachable and the public bucket exists.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.PublicBucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.cfg.PublicBucket)
	}
	return nil
}

// ensureOnce runs EnsureBucket at most once per bucket for the process lifetime.
// Concurrent first callers share one in-flight call; a failure is not cached.
func (s *Store) ensureOnce(ctx context.Context, bucket string, private bool) error {
	s.mu.Lock()
	done := s.ensured[bucket]
	s.mu.Unlock()
	if done {
		return nil
	}

	// Callers share the flight, so one caller's cancellation must not fail the rest.
	flightCtx := context.WithoutCancel(ctx)
	_, err, _ := s.ensureGroup.Do(bucket, func() (any, error) {
		return nil, s.EnsureBucket(flightCtx, bucket, private)
	})
	return err
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Sid":"PublicReadGetObject","Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
