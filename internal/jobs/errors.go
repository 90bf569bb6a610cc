package jobs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrCapability  = errors.New("capability error")
	ErrFetch       = errors.New("fetch error")
	ErrTransform   = errors.New("transform error")
	ErrPersistence = errors.New("persistence error")
)

var markers = []error{ErrValidation, ErrCapability, ErrFetch, ErrTransform, ErrPersistence}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransform
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the queue should redeliver the job after this
// failure. Validation and capability errors are terminal; everything the
// environment might heal on a later attempt is retryable.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrCapability):
		return false
	case errors.Is(err, ErrFetch), errors.Is(err, ErrTransform), errors.Is(err, ErrPersistence):
		return true
	default:
		return true
	}
}

// HTTPStatus maps a classified error to the response code the gateway
// should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrCapability):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human-readable portion of a wrapped error with the
// marker prefix stripped, suitable for {error} response bodies and status
// records.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range markers {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "job failure"
	}
	return strings.Join(parts, ": ")
}
