package predict

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingFields is returned when income or year is absent or null.
	ErrMissingFields = errors.New("Missing required fields: income and year")
	// ErrInvalidType is returned when income or year cannot be coerced.
	ErrInvalidType = errors.New("Invalid input type — income must be numeric, year must be integer")
	// ErrMalformedBody is returned when the body is not a JSON object.
	ErrMalformedBody = errors.New("Request body must be a JSON object")
	// ErrModelUnavailable is returned for every request while no model is loaded.
	ErrModelUnavailable = errors.New("Prediction model is unavailable")
)

// UnavailableError carries the reason the model could not be loaded.
// It matches ErrModelUnavailable with errors.Is.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return ErrModelUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrModelUnavailable, e.Cause)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Cause }

// ModelError wraps a failure raised while running the regressor.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("Prediction model failed: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// StatusFor maps an exchange error to the HTTP status reported on the wire.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	default:
		// ErrModelUnavailable, *ModelError and anything unexpected
		return http.StatusInternalServerError
	}
}
