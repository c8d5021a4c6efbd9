package user

import (
	"context"
	"fmt"

	"github.com/abduss/filevault/internal/file"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type repository interface {
	List(ctx context.Context, offset, limit int) ([]User, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FileCleaner removes the files attached to an owning entity.
type FileCleaner interface {
	DeleteByOwningEntity(ctx context.Context, entity file.OwningEntity) (int64, error)
}

// Service orchestrates user operations.
type Service struct {
	repo  repository
	files FileCleaner
	log   *zap.Logger
}

// NewService constructs a user service.
func NewService(repo repository, files FileCleaner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, files: files, log: log}
}

// List returns the requested page of users.
func (s *Service) List(ctx context.Context, page, pageSize int) (Page, error) {
	if page < 1 || pageSize < 1 || pageSize > MaxPageSize {
		return Page{}, ErrInvalidPage
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	items, err := s.repo.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.Get(ctx, id)
}

// Update changes the caller's own profile.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (User, error) {
	if in.DisplayName == nil && in.Image == nil {
		return s.repo.Get(ctx, id)
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a user and the files attached to them. Only the user
// themselves or an administrator may do so.
func (s *Service) Delete(ctx context.Context, actorID uuid.UUID, actorIsAdmin bool, id uuid.UUID) error {
	if actorID != id && !actorIsAdmin {
		return ErrForbidden
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	if s.files != nil {
		if _, err := s.files.DeleteByOwningEntity(ctx, file.OwningEntity{Type: EntityType, ID: id.String()}); err != nil {
			return fmt.Errorf("delete files of user %s: %w", id, err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id.String()), zap.Bool("by_admin", actorID != id))
	return nil
}
