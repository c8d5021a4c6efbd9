package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const recordColumns = `id, original_name, mime_type, size, bucket, key, url, is_private,
entity_type, entity_id, uploaded_by_id, metadata, status, created_at, updated_at`

// Repository provides access to file records stored in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePending inserts a pending marker for an upload whose object is not yet written.
func (r *Repository) CreatePending(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	entityType, entityID := entityColumns(rec.Entity)
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	query := `
INSERT INTO files (id, original_name, mime_type, size, bucket, key, url, is_private,
	entity_type, entity_id, uploaded_by_id, metadata, status)
VALUES ($1, $2, $3, $4, $5, $6, '', $7, $8, $9, $10, $11, 'pending')
RETURNING ` + recordColumns + `;`

	stored, err := scanRecord(r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.OriginalName,
		rec.MIMEType,
		rec.Size,
		rec.Bucket,
		rec.Key,
		rec.IsPrivate,
		entityType,
		entityID,
		rec.UploadedByID,
		metadata,
	))
	if err != nil {
		return Record{}, fmt.Errorf("create pending file record: %w", err)
	}
	return stored, nil
}

// Activate marks a pending record as uploaded and stores its object URL.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID, url string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE files SET status = 'active', url = $2, updated_at = NOW()
WHERE id = $1 AND status = 'pending'
RETURNING ` + recordColumns + `;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("activate file record: %w", err)
	}
	return rec, nil
}

// DeletePending removes a pending marker. Active records are left untouched.
func (r *Repository) DeletePending(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1 AND status = 'pending';`, id); err != nil {
		return fmt.Errorf("delete pending file record: %w", err)
	}
	return nil
}

// Get fetches an active record by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + recordColumns + ` FROM files WHERE id = $1 AND status = 'active';`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("get file record: %w", err)
	}
	return rec, nil
}

// FindByEntity lists active records attached to an owning entity, newest first.
func (r *Repository) FindByEntity(ctx context.Context, entity OwningEntity) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + recordColumns + `
FROM files
WHERE entity_type = $1 AND entity_id = $2 AND status = 'active'
ORDER BY created_at DESC;`

	rows, err := r.pool.Query(ctx, query, entity.Type, entity.ID)
	if err != nil {
		return nil, fmt.Errorf("find files by entity: %w", err)
	}
	return collectRecords(rows)
}

// CountByEntity counts active records attached to an owning entity.
func (r *Repository) CountByEntity(ctx context.Context, entity OwningEntity) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM files WHERE entity_type = $1 AND entity_id = $2 AND status = 'active';`,
		entity.Type, entity.ID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count files by entity: %w", err)
	}
	return count, nil
}

// Delete removes an active record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1 AND status = 'active';`, id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// DeleteByEntity removes every active record attached to an owning entity.
func (r *Repository) DeleteByEntity(ctx context.Context, entity OwningEntity) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM files WHERE entity_type = $1 AND entity_id = $2 AND status = 'active';`,
		entity.Type, entity.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete files by entity: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateMetadata replaces the metadata object of an active record.
func (r *Repository) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if metadata == nil {
		metadata = map[string]any{}
	}

	query := `
UPDATE files SET metadata = $2, updated_at = NOW()
WHERE id = $1 AND status = 'active'
RETURNING ` + recordColumns + `;`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, metadata))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("update file metadata: %w", err)
	}
	return rec, nil
}

// ListStalePending returns up to limit pending markers created before cutoff.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + recordColumns + `
FROM files
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at
LIMIT $2;`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending files: %w", err)
	}
	return collectRecords(rows)
}

func entityColumns(e *OwningEntity) (*string, *string) {
	if e == nil {
		return nil, nil
	}
	return &e.Type, &e.ID
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec        Record
		entityType *string
		entityID   *string
		status     string
	)
	err := row.Scan(
		&rec.ID,
		&rec.OriginalName,
		&rec.MIMEType,
		&rec.Size,
		&rec.Bucket,
		&rec.Key,
		&rec.URL,
		&rec.IsPrivate,
		&entityType,
		&entityID,
		&rec.UploadedByID,
		&rec.Metadata,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	if entityType != nil && entityID != nil {
		rec.Entity = &OwningEntity{Type: *entityType, ID: *entityID}
	}
	rec.Status = Status(status)
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file records: %w", err)
	}
	return records, nil
}
