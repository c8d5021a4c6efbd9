package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	uploadConcurrency = 4
	sweepBatchSize    = 100
)

type recordStore interface {
	CreatePending(ctx context.Context, rec Record) (Record, error)
	Activate(ctx context.Context, id uuid.UUID, url string) (Record, error)
	DeletePending(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	FindByEntity(ctx context.Context, entity OwningEntity) ([]Record, error)
	CountByEntity(ctx context.Context, entity OwningEntity) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByEntity(ctx context.Context, entity OwningEntity) (int64, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) (Record, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Record, error)
}

type objectStore interface {
	BucketFor(private bool) string
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string, private bool) (string, error)
	Delete(ctx context.Context, bucket, key string) error
	Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Observer receives the outcome of each file operation, e.g. for metrics.
type Observer interface {
	ObserveFileOperation(operation, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveFileOperation(string, string) {}

// Service manages the file lifecycle across the record store and the object store.
type Service struct {
	repo     recordStore
	store    objectStore
	keys     *KeyGenerator
	log      *zap.Logger
	observer Observer
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithKeyGenerator overrides the object key generator.
func WithKeyGenerator(g *KeyGenerator) Option {
	return func(s *Service) { s.keys = g }
}

// WithObserver installs an operation observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides the clock used to age pending uploads.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a file service.
func NewService(repo recordStore, store objectStore, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		store:    store,
		keys:     NewKeyGenerator(),
		log:      log,
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores one file and returns its active record.
//
// A pending marker is written first so that an object whose record never gets
// activated can be found and removed by SweepPending.
func (s *Service) Upload(ctx context.Context, in UploadInput, opts UploadOptions) (Record, error) {
	rec, err := s.upload(ctx, in, opts)
	s.observe("upload", err)
	return rec, err
}

func (s *Service) upload(ctx context.Context, in UploadInput, opts UploadOptions) (Record, error) {
	if opts.Entity != nil && !opts.Entity.Valid() {
		return Record{}, ErrIncompleteEntity
	}

	bucket := s.store.BucketFor(opts.Private)
	pending := Record{
		ID:           uuid.New(),
		OriginalName: in.Name,
		MIMEType:     in.MIMEType,
		Size:         in.Size,
		Bucket:       bucket,
		Key:          s.keys.Generate(in.Name),
		IsPrivate:    opts.Private,
		Entity:       opts.Entity,
		UploadedByID: opts.UploadedByID,
		Metadata:     copyMetadata(opts.Metadata),
	}

	pending, err := s.repo.CreatePending(ctx, pending)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	url, err := s.store.Put(ctx, pending.Bucket, pending.Key, in.Body, in.Size, in.MIMEType, pending.IsPrivate)
	if err != nil {
		if delErr := s.repo.DeletePending(context.WithoutCancel(ctx), pending.ID); delErr != nil {
			s.log.Warn("remove pending file record",
				zap.String("file_id", pending.ID.String()),
				zap.Error(delErr),
			)
		}
		return Record{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	rec, err := s.repo.Activate(ctx, pending.ID, url)
	if err != nil {
		s.log.Error("activate file record; left for sweep",
			zap.String("file_id", pending.ID.String()),
			zap.String("bucket", pending.Bucket),
			zap.String("key", pending.Key),
			zap.Error(err),
		)
		return Record{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	s.log.Info("file uploaded",
		zap.String("file_id", rec.ID.String()),
		zap.String("bucket", rec.Bucket),
		zap.Int64("size", rec.Size),
		zap.Bool("private", rec.IsPrivate),
	)
	return rec, nil
}

// UploadMany stores each file independently and concurrently. Successful
// uploads are kept when others fail. It returns the stored records in input
// order and, when any file failed, a *BatchError naming the failures.
func (s *Service) UploadMany(ctx context.Context, inputs []UploadInput, opts UploadOptions) ([]Record, error) {
	results := make([]Record, len(inputs))
	errs := make([]error, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i := range inputs {
		i := i
		g.Go(func() error {
			// Per-file failures are collected, not returned, so siblings keep running.
			results[i], errs[i] = s.Upload(gctx, inputs[i], opts)
			return nil
		})
	}
	_ = g.Wait()

	var (
		stored []Record
		batch  BatchError
	)
	for i, err := range errs {
		if err != nil {
			batch.Failed = append(batch.Failed, FailedUpload{Name: inputs[i].Name, Err: err})
			continue
		}
		stored = append(stored, results[i])
	}

	if len(batch.Failed) > 0 {
		return stored, &batch
	}
	return stored, nil
}

// Get returns an active record as stored.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.repo.Get(ctx, id)
}

// ResolveAccessURL returns the record with a URL the caller can fetch: the
// stored URL for public files, a fresh presigned URL for private ones.
// The presigned URL is never persisted.
func (s *Service) ResolveAccessURL(ctx context.Context, id uuid.UUID, ttl time.Duration) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !rec.IsPrivate {
		return rec, nil
	}
	return s.presign(ctx, rec, ttl)
}

// Presign returns the record with its URL replaced by a signed URL, whatever
// the file's visibility.
func (s *Service) Presign(ctx context.Context, id uuid.UUID, ttl time.Duration) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return s.presign(ctx, rec, ttl)
}

func (s *Service) presign(ctx context.Context, rec Record, ttl time.Duration) (Record, error) {
	signed, err := s.store.Presign(ctx, rec.Bucket, rec.Key, ttl)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrPresignFailed, err)
	}
	rec.URL = signed
	return rec, nil
}

// Delete removes the object and then its record. When the object cannot be
// removed the record is kept and ErrDeleteFailed is returned.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.delete(ctx, id)
	s.observe("delete", err)
	return err
}

func (s *Service) delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, rec.Bucket, rec.Key); err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			// Deleted concurrently; the object is gone either way.
			return nil
		}
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	s.log.Info("file deleted", zap.String("file_id", id.String()))
	return nil
}

// DeleteByOwningEntity removes every file attached to entity. Object removal is
// best effort; failures are logged and the records are deleted regardless.
func (s *Service) DeleteByOwningEntity(ctx context.Context, entity OwningEntity) (int64, error) {
	if !entity.Valid() {
		return 0, ErrIncompleteEntity
	}

	records, err := s.repo.FindByEntity(ctx, entity)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		if err := s.store.Delete(ctx, rec.Bucket, rec.Key); err != nil {
			s.log.Warn("delete object of owning entity",
				zap.String("entity_type", entity.Type),
				zap.String("entity_id", entity.ID),
				zap.String("file_id", rec.ID.String()),
				zap.Error(err),
			)
		}
	}

	n, err := s.repo.DeleteByEntity(ctx, entity)
	if err != nil {
		return 0, err
	}
	s.log.Info("files of owning entity deleted",
		zap.String("entity_type", entity.Type),
		zap.String("entity_id", entity.ID),
		zap.Int64("count", n),
	)
	return n, nil
}

// CountByOwningEntity returns the number of files attached to entity.
func (s *Service) CountByOwningEntity(ctx context.Context, entity OwningEntity) (int64, error) {
	if !entity.Valid() {
		return 0, ErrIncompleteEntity
	}
	return s.repo.CountByEntity(ctx, entity)
}

// UpdateMetadata replaces the metadata object wholesale. A nil map stores {}.
// Visibility and every other attribute are left untouched.
func (s *Service) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) (Record, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Record{}, err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return s.repo.UpdateMetadata(ctx, id, metadata)
}

// SweepPending removes pending markers older than olderThan together with any
// object written for them, and returns how many markers were removed.
func (s *Service) SweepPending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	removed := 0

	for {
		stale, err := s.repo.ListStalePending(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return removed, err
		}
		if len(stale) == 0 {
			break
		}

		progressed := false
		for _, rec := range stale {
			if err := s.store.Delete(ctx, rec.Bucket, rec.Key); err != nil {
				s.log.Warn("sweep: delete object",
					zap.String("file_id", rec.ID.String()),
					zap.String("key", rec.Key),
					zap.Error(err),
				)
				continue
			}
			if err := s.repo.DeletePending(ctx, rec.ID); err != nil {
				return removed, err
			}
			removed++
			progressed = true
		}

		if !progressed || len(stale) < sweepBatchSize {
			break
		}
	}

	if removed > 0 {
		s.log.Info("sweep: removed stale pending uploads", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *Service) observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.observer.ObserveFileOperation(operation, outcome)
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
