package user

import (
	"time"

	"github.com/google/uuid"
)

// EntityType is the owning-entity type under which a user's files are attached.
const EntityType = "User"

// User is the public view of an account. Credentials never leave the auth package.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName"`
	Image       *string   `json:"image"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpdateInput holds the profile fields a user may change on themselves.
// A nil field is left untouched.
type UpdateInput struct {
	DisplayName *string
	Image       *string
}

// Page is one slice of the user listing.
type Page struct {
	Items      []User `json:"items"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}
