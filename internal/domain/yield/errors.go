package yield

import (
	"fmt"

	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

// CodeOutOfRange tags calibration misses inside error results.
const CodeOutOfRange = "out_of_range"

// InsufficientDataError is returned when a fit receives too few samples.
type InsufficientDataError struct {
	Got      int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("at least %d samples are required for training, got %d", e.Required, e.Got)
}

// OutOfRangeError describes an NDVI value no calibration band covers.
type OutOfRangeError struct {
	Crop  string
	Value float64
	Bands []Band
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("ndvi %.4f is outside every calibration band of %s", e.Value, e.Crop)
}

// ModelLoadError is raised by stores when a persisted model cannot be decoded.
// The estimator recovers from it by falling back to calibration.
type ModelLoadError struct {
	Crop string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model for %s: %v", e.Crop, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// InvalidInputError reports a malformed field before any computation happens.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return e.Field + ": " + e.Reason
}

func invalidInput(field, reason string) error {
	return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid input", &InvalidInputError{Field: field, Reason: reason})
}
