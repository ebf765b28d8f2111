package errs

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the acquisition and conversation services. Callers
// match them with errors.Is; the concrete error carries the detail.
var (
	ErrValidation           = errors.New("invalid input")
	ErrAcquisition          = errors.New("acquisition failed")
	ErrExtractionIncomplete = errors.New("extraction incomplete")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
)

// Validation reports a malformed or missing field.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound reports a missing entity by kind and identifier.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// Acquisition wraps a navigation, timeout or extractor failure for link.
func Acquisition(link string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrAcquisition, link, cause)
}

// Conflict wraps a unique-key violation.
func Conflict(what string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrConflict, what, cause)
}

// Kind returns the sentinel matching err, or nil when err is not classified.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrAcquisition, ErrExtractionIncomplete, ErrNotFound, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
