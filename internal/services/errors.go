package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error families. Every error surfaced by the pipeline carries exactly one of
// these markers so callers can decide between aborting, degrading, or
// swallowing.
var (
	ErrProvider      = errors.New("provider error")
	ErrPersistence   = errors.New("persistence error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrBusy          = errors.New("operation in progress")
)

// Provider failures.
var (
	ErrRateLimited      = fmt.Errorf("%w: rate limited", ErrProvider)
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrProvider)
	ErrMalformedOutput  = fmt.Errorf("%w: malformed output", ErrProvider)
	ErrContentFiltered  = fmt.Errorf("%w: content filtered", ErrProvider)
	ErrNetwork          = fmt.Errorf("%w: network failure", ErrProvider)
	ErrBadRequest       = fmt.Errorf("%w: bad request", ErrProvider)
	ErrServer           = fmt.Errorf("%w: server error", ErrProvider)
)

// Persistence failures.
var (
	ErrNoDestination = fmt.Errorf("%w: no destination chosen", ErrPersistence)
	ErrAccessDenied  = fmt.Errorf("%w: access denied", ErrPersistence)
	ErrUnsupported   = fmt.Errorf("%w: unsupported in this environment", ErrPersistence)
	ErrLoginRequired = fmt.Errorf("%w: login required", ErrPersistence)
)

// Validation failures.
var (
	ErrMissingInput  = fmt.Errorf("%w: missing required input", ErrValidation)
	ErrStyleConflict = fmt.Errorf("%w: append and override style text are mutually exclusive", ErrValidation)
	ErrOutOfRange    = fmt.Errorf("%w: value out of range", ErrValidation)
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind reports the error family as a short lowercase label. Unknown errors
// report "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "internal"
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
