package file

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
)

// Status tracks whether a record's object write has completed.
type Status string

const (
	// StatusPending marks a record inserted before its object was written.
	StatusPending Status = "pending"
	// StatusActive marks a fully uploaded file. Only active records are readable.
	StatusActive Status = "active"
)

// OwningEntity links a file to the domain object it belongs to, e.g. {"User", id}.
// Type and ID are always set together.
type OwningEntity struct {
	Type string
	ID   string
}

// Valid reports whether both halves of the pair are present.
func (e OwningEntity) Valid() bool {
	return e.Type != "" && e.ID != ""
}

// Record is the persisted description of an uploaded object.
type Record struct {
	ID           uuid.UUID
	OriginalName string
	MIMEType     string
	Size         int64
	Bucket       string
	Key          string
	URL          string
	IsPrivate    bool
	Entity       *OwningEntity
	UploadedByID *uuid.UUID
	Metadata     map[string]any
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type recordJSON struct {
	ID           uuid.UUID      `json:"id"`
	OriginalName string         `json:"originalName"`
	MIMEType     string         `json:"mimeType"`
	Size         int64          `json:"size"`
	Bucket       string         `json:"bucket"`
	Key          string         `json:"key"`
	URL          string         `json:"url"`
	IsPrivate    bool           `json:"isPrivate"`
	EntityType   *string        `json:"entityType"`
	EntityID     *string        `json:"entityId"`
	UploadedByID *uuid.UUID     `json:"uploadedById"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// MarshalJSON renders the API representation. Absent optional fields are null
// and the internal status is omitted.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:           r.ID,
		OriginalName: r.OriginalName,
		MIMEType:     r.MIMEType,
		Size:         r.Size,
		Bucket:       r.Bucket,
		Key:          r.Key,
		URL:          r.URL,
		IsPrivate:    r.IsPrivate,
		UploadedByID: r.UploadedByID,
		Metadata:     r.Metadata,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	if r.Entity != nil {
		out.EntityType = &r.Entity.Type
		out.EntityID = &r.Entity.ID
	}
	return json.Marshal(out)
}

// UploadInput is a single file to store.
type UploadInput struct {
	Name     string
	MIMEType string
	Size     int64
	Body     io.Reader
}

// UploadOptions apply to every file of an upload request.
type UploadOptions struct {
	Entity       *OwningEntity
	UploadedByID *uuid.UUID
	Metadata     map[string]any
	Private      bool
}
