package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPrompt     = errors.New("invalid prompt")
	ErrInvalidSteps      = errors.New("invalid steps")
	ErrInvalidImageCount = errors.New("invalid image count")
	ErrBatchFailed       = errors.New("failed to generate any images")
)

// ValidationError reports a client input that violates the generation bounds.
// It unwraps to one of ErrInvalidPrompt, ErrInvalidSteps or ErrInvalidImageCount.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func newValidationError(kind error, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}
