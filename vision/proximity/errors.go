package proximity

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput marks a malformed or empty depth map or detection.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyRegion marks a bounding box that covers no usable pixels once clamped to the map.
	ErrEmptyRegion = errors.New("empty region")
)

func newInvalidInputError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

func newEmptyRegionError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrEmptyRegion, format, args...)
}
