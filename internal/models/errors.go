package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller mistakes: missing query, malformed event, bad key.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCollaborator marks failures of the index, storage, label detector, signer or intent extractor.
	ErrCollaborator = errors.New("collaborator failure")
	// ErrNotFound marks a missing object or document.
	ErrNotFound = errors.New("not found")
)

// InvalidInputf returns an error wrapping ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CollaboratorError wraps err as a failure of the named collaborator.
// A nil err returns nil.
func CollaboratorError(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", name, ErrCollaborator, err)
}
