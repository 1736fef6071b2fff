package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPrecondition marks a stage requested before its pipeline dependency
	// is satisfied. Rejected before any work is dispatched.
	ErrPrecondition = errors.New("precondition not met")
	// ErrBackend marks a failure raised by the signal-processing backend.
	ErrBackend = errors.New("backend error")
	// ErrValidation marks a malformed caller-supplied parameter.
	ErrValidation = errors.New("validation error")
	// ErrIO marks a load, save, or session persistence failure.
	ErrIO = errors.New("io error")
	// ErrTrustConfirmation marks a session restore that was refused because
	// the caller did not confirm the artifact source. It is a gate, not a
	// processing fault.
	ErrTrustConfirmation = errors.New("restore not confirmed")
)

// Category names the classification of a wrapped error.
type Category string

const (
	CategoryPrecondition Category = "precondition"
	CategoryBackend      Category = "backend"
	CategoryValidation   Category = "validation"
	CategoryIO           Category = "io"
	CategoryTrust        Category = "trust"
	CategoryUnknown      Category = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrBackend
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the classified view of a worker failure, suitable for
// embedding in an error event payload.
type ErrorDetails struct {
	Category Category
	Message  string
}

// Details classifies err against the sentinel markers and extracts a
// non-empty message for event delivery.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Category: CategoryUnknown, Message: "unknown failure"}
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = "unknown failure"
	}
	return ErrorDetails{Category: Classify(err), Message: message}
}

// Classify maps err onto its error category.
func Classify(err error) Category {
	switch {
	case errors.Is(err, ErrPrecondition):
		return CategoryPrecondition
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrTrustConfirmation):
		return CategoryTrust
	case errors.Is(err, ErrIO):
		return CategoryIO
	case errors.Is(err, ErrBackend):
		return CategoryBackend
	default:
		return CategoryUnknown
	}
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
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
