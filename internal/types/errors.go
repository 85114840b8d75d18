package types

import "errors"

// Error kinds surfaced by the auth core and the posts module. The HTTP boundary
// (api.ErrorStatus) is the only place that turns them into status codes.
var (
	ErrDuplicateIdentity  = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidToken       = errors.New("invalid token")
	ErrPersistence        = errors.New("persistence failure")

	ErrNotFound         = errors.New("requested item not found")
	ErrForbidden        = errors.New("action forbidden")
	ErrValidation       = errors.New("validation failed")
	ErrUnsupportedImage = errors.New("unsupported image")
)
