package models

import "errors"

// Errors returned by repositories and services and mapped to responses by handlers
var (
	ErrPostNotFound       = errors.New("post not found")
	ErrDuplicateTitle     = errors.New("post with this title already exists")
	ErrForbidden          = errors.New("operation not permitted")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("user is not an admin")
)
