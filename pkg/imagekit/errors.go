package imagekit

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedImage is matched by every decode failure.
	ErrMalformedImage = errors.New("malformed image")
	// ErrInvalidGeometry is returned for a target frame with a zero or
	// negative side.
	ErrInvalidGeometry = errors.New("invalid frame geometry")
)

const formatHint = "the image might be corrupted or in an unsupported format (HEIC files need conversion to JPG/PNG)"

// MalformedImageError carries the decoder diagnostic.
type MalformedImageError struct {
	Err  error
	Hint string
}

func (e *MalformedImageError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("cannot process image: %v", e.Err)
	}
	return fmt.Sprintf("cannot process image: %v; %s", e.Err, e.Hint)
}

func (e *MalformedImageError) Unwrap() error { return e.Err }

func (e *MalformedImageError) Is(target error) bool {
	return target == ErrMalformedImage
}

func malformed(err error) error {
	return &MalformedImageError{Err: err, Hint: formatHint}
}
