package user

import "errors"

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when the caller may not act on another account.
	ErrForbidden = errors.New("not allowed to modify this user")
	// ErrInvalidPage is returned for out-of-range pagination parameters.
	ErrInvalidPage = errors.New("invalid pagination parameters")
)
