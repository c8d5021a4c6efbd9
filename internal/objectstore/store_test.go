package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	buckets  map[string]bool
	policies map[string]string
	objects  map[string][]byte

	existsCalls atomic.Int32
	putErr      error
	removeErr   error
	existsErr   error
	presignTTL  time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		buckets:  map[string]bool{},
		policies: map[string]string{},
		objects:  map[string][]byte{},
	}
}

func (f *fakeClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	f.existsCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket], nil
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return nil
}

func (f *fakeClient) SetBucketPolicy(_ context.Context, bucket, policy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[bucket] = policy
	return nil
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = data
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) RemoveObject(_ context.Context, bucket, key string, _ minio.RemoveObjectOptions) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeClient) PresignedGetObject(_ context.Context, bucket, key string, ttl time.Duration, _ url.Values) (*url.URL, error) {
	f.presignTTL = ttl
	return url.Parse("http://minio:9000/" + bucket + "/" + key + "?X-Amz-Signature=abc")
}

func newStore(c *fakeClient) *Store {
	return New(c, Config{
		PublicBucket:  "uploads",
		PrivateBucket: "uploads-private",
		BaseURL:       "http://localhost:9000/",
	})
}

func TestPutEnsuresBucketWithVisibilityPolicy(t *testing.T) {
	c := newFakeClient()
	s := newStore(c)
	ctx := context.Background()

	u, err := s.Put(ctx, s.BucketFor(false), "uploads/a.png", bytes.NewReader([]byte("png")), 3, "image/png", false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/uploads/uploads/a.png", u)

	_, err = s.Put(ctx, s.BucketFor(true), "uploads/b.pdf", bytes.NewReader([]byte("pdf")), 3, "application/pdf", true)
	require.NoError(t, err)

	assert.Contains(t, c.policies["uploads"], `"s3:GetObject"`)
	assert.Contains(t, c.policies["uploads"], "arn:aws:s3:::uploads/*")
	assert.Equal(t, "", c.policies["uploads-private"])
	assert.Equal(t, []byte("pdf"), c.objects["uploads-private/uploads/b.pdf"])
}

func TestPutEnsuresEachBucketOnce(t *testing.T) {
	c := newFakeClient()
	s := newStore(c)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(context.Background(), "uploads", "k", strings.NewReader("x"), 1, "", false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	calls := c.existsCalls.Load()
	assert.LessOrEqual(t, calls, int32(8))

	before := c.existsCalls.Load()
	_, err := s.Put(context.Background(), "uploads", "k2", strings.NewReader("x"), 1, "", false)
	require.NoError(t, err)
	assert.Equal(t, before, c.existsCalls.Load())
}

func TestEnsureFailureIsNotCached(t *testing.T) {
	c := newFakeClient()
	c.existsErr = errors.New("dial tcp: connection refused")
	s := newStore(c)

	_, err := s.Put(context.Background(), "uploads", "k", strings.NewReader("x"), 1, "", false)
	require.ErrorIs(t, err, ErrBucketUnavailable)

	c.existsErr = nil
	_, err = s.Put(context.Background(), "uploads", "k", strings.NewReader("x"), 1, "", false)
	require.NoError(t, err)
}

func TestEnsureIgnoresCallerCancellation(t *testing.T) {
	c := newFakeClient()
	s := newStore(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.ensureOnce(ctx, "uploads", false))
	assert.True(t, c.buckets["uploads"])

	before := c.existsCalls.Load()
	require.NoError(t, s.ensureOnce(context.Background(), "uploads", false))
	assert.Equal(t, before, c.existsCalls.Load())
}

func TestPutWrapsStoreFailure(t *testing.T) {
	c := newFakeClient()
	c.putErr = minio.ErrorResponse{Code: "AccessDenied", Message: "denied"}
	s := newStore(c)

	_, err := s.Put(context.Background(), "uploads", "k", strings.NewReader("x"), 1, "", false)
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestDeleteWrapsStoreFailure(t *testing.T) {
	c := newFakeClient()
	c.removeErr = errors.New("timeout")
	s := newStore(c)

	err := s.Delete(context.Background(), "uploads", "k")
	require.ErrorIs(t, err, ErrDeleteFailed)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPresignExpiry(t *testing.T) {
	c := newFakeClient()
	s := newStore(c)
	ctx := context.Background()

	u, err := s.Presign(ctx, "uploads-private", "uploads/a.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, u, "X-Amz-Signature")
	assert.Equal(t, DefaultPresignTTL, c.presignTTL)

	_, err = s.Presign(ctx, "uploads-private", "k", 120*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, c.presignTTL)

	_, err = s.Presign(ctx, "uploads-private", "k", MaxPresignTTL+time.Second)
	assert.ErrorIs(t, err, ErrInvalidExpiry)
}

func TestObjectURLEscapesSegments(t *testing.T) {
	s := newStore(newFakeClient())
	assert.Equal(t, "http://localhost:9000/uploads/uploads/a%20b.png", s.ObjectURL("uploads", "uploads/a b.png"))
}

func TestPing(t *testing.T) {
	c := newFakeClient()
	s := newStore(c)

	assert.Error(t, s.Ping(context.Background()))

	require.NoError(t, s.EnsureBuckets(context.Background()))
	assert.NoError(t, s.Ping(context.Background()))
}
