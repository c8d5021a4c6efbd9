package file

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileNotFound signals that no active record exists for the id.
	ErrFileNotFound = errors.New("file not found")
	// ErrForbidden signals that the principal may not modify the record.
	ErrForbidden = errors.New("forbidden")
	// ErrUploadFailed signals that the object or its record could not be stored.
	ErrUploadFailed = errors.New("upload failed")
	// ErrDeleteFailed signals that the object could not be removed; the record is kept.
	ErrDeleteFailed = errors.New("delete failed")
	// ErrPresignFailed signals that no signed URL could be produced.
	ErrPresignFailed = errors.New("presign failed")
	// ErrIncompleteEntity signals an owning entity with only one of type/id set.
	ErrIncompleteEntity = errors.New("entityType and entityId must be provided together")
)

// FailedUpload names a file of a batch that could not be stored.
type FailedUpload struct {
	Name string
	Err  error
}

// BatchError reports the files of an UploadMany call that failed.
// Files not listed were stored successfully.
type BatchError struct {
	Failed []FailedUpload
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d file(s) failed to upload: %s", len(e.Failed), strings.Join(e.Names(), ", "))
}

// Unwrap exposes the per-file causes to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// Names returns the names of the failed files in input order.
func (e *BatchError) Names() []string {
	names := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		names[i] = f.Name
	}
	return names
}
