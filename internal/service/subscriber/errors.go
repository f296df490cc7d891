package subscriber

import "errors"

// Sentinel errors for the subscriber service layer.
var (
	ErrNotFound     = errors.New("subscriber not found")
	ErrDuplicate    = errors.New("subscriber already active")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidName  = errors.New("name must be at most 100 characters")
)
