package file

import "github.com/google/uuid"

// Principal is the authenticated caller as seen by the access policy.
type Principal struct {
	ID      uuid.UUID
	// IsAdmin grants nothing here; file changes stay with the uploader.
	IsAdmin bool
}

// CanModify returns nil when p may delete or edit rec, ErrForbidden otherwise.
// Only the uploader may modify a file. Records without an uploader are not
// modifiable by anyone, administrators included.
func CanModify(p Principal, rec Record) error {
	if rec.UploadedByID == nil || *rec.UploadedByID != p.ID {
		return ErrForbidden
	}
	return nil
}
