package catalog

import "errors"

var (
	// ErrNotFound marks a target that answered 404. It is a terminal, expected outcome.
	ErrNotFound = errors.New("catalog: item not found")
	// ErrMissingField marks a document lacking a required element.
	ErrMissingField = errors.New("catalog: required field missing")
)
