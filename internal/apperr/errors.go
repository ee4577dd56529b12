// Package apperr defines the error taxonomy shared by the embedding and
// matching pipeline. Callers test categories with errors.Is against the
// exported sentinels; constructors wrap with %w so the cause is preserved.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrEmbeddingProvider = errors.New("embedding provider error")
	ErrLLMProvider       = errors.New("llm provider error")
	ErrParse             = errors.New("parse error")
	ErrQueueExhausted    = errors.New("queue item exhausted its attempts")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

func EmbeddingProvider(err error) error {
	return fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
}

func LLMProvider(err error) error {
	return fmt.Errorf("%w: %w", ErrLLMProvider, err)
}

func QueueExhausted(id string, attempts int, cause string) error {
	return fmt.Errorf("%w: item %s after %d attempts: %s", ErrQueueExhausted, id, attempts, cause)
}

// ParseError reports model output that could not be decoded. Raw holds the
// (possibly truncated) text that was rejected.
type ParseError struct {
	Raw string
	Err error
}

func NewParseError(raw string, err error) *ParseError {
	const maxRaw = 512
	if len(raw) > maxRaw {
		raw = raw[:maxRaw]
	}
	return &ParseError{Raw: raw, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Permanent reports whether retrying the operation cannot change the outcome.
func Permanent(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

// HTTPStatus maps an error onto the status code and machine readable code
// used in API error bodies.
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrEmbeddingProvider):
		return http.StatusBadGateway, "EMBEDDING_PROVIDER_ERROR"
	case errors.Is(err, ErrLLMProvider):
		return http.StatusBadGateway, "LLM_PROVIDER_ERROR"
	case errors.Is(err, ErrParse):
		return http.StatusBadGateway, "PARSE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
