package sceneaid

import (
	"fmt"

	"github.com/pkg/errors"
)

// Collaborator names used in CollaboratorError.
const (
	CollaboratorDetector = "detector"
	CollaboratorDepth    = "depth"
	CollaboratorNarrator = "narrator"
)

// CollaboratorError reports that an external model failed. It is never turned into an
// empty result.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

// Unwrap returns the underlying failure.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func newCollaboratorError(collaborator string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}

// IsCollaboratorFailure reports whether err came from an external collaborator.
func IsCollaboratorFailure(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
