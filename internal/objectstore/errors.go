package objectstore

import (
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
)

var (
	ErrUploadFailed      = errors.New("objectstore: upload failed")
	ErrDeleteFailed      = errors.New("objectstore: delete failed")
	ErrPresignFailed     = errors.New("objectstore: presign failed")
	ErrBucketUnavailable = errors.New("objectstore: bucket unavailable")
	ErrInvalidExpiry     = errors.New("objectstore: invalid presign expiry")
	ErrNotFound          = errors.New("objectstore: object not found")
	ErrAccessDenied      = errors.New("objectstore: access denied")
)

// wrapError classifies minio error codes and falls back to the operation sentinel.
// The original error is formatted with %v so callers match on sentinels only.
func wrapError(err error, fallback error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %w: %v", fallback, ErrNotFound, err)
	case "AccessDenied", "Forbidden":
		return fmt.Errorf("%w: %w: %v", fallback, ErrAccessDenied, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}
