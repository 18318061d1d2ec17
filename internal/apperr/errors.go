package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrMissingMetadata means no metadata was extracted or supplied.
	ErrMissingMetadata    = errors.New("missing document metadata")
	ErrMissingFrontmatter = errors.New("missing frontmatter")
	ErrInvalidDocument    = errors.New("invalid document")
	ErrUnsupportedImage   = errors.New("unsupported image")
)
