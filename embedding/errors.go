package embedding

import (
	"errors"
	"fmt"
)

// Error codes carried by EmbeddingError
const (
	ErrCodeInvalidInput      = "InvalidInput"
	ErrCodeEmptyInput        = "EmptyInput"
	ErrCodeUnauthorized      = "Unauthorized"
	ErrCodeRateLimitExceeded = "RateLimitExceeded"
	ErrCodeModelNotAvailable = "ModelNotAvailable"
	ErrCodeContextCanceled   = "ContextCanceled"
	ErrCodeAPIError          = "APIError"
	ErrCodeInternal          = "Internal"
)

// EmbeddingError is returned by embedders when a text cannot be turned into a vector
type EmbeddingError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *EmbeddingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("embedding.%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("embedding.%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

func NewEmbeddingError(op string, err error, code, message string) *EmbeddingError {
	return &EmbeddingError{Op: op, Code: code, Message: message, Err: err}
}

// IsCode reports whether err wraps an EmbeddingError with code
func IsCode(err error, code string) bool {
	var e *EmbeddingError
	return errors.As(err, &e) && e.Code == code
}

func ErrInvalidInput(op string, err error, details string) error {
	return NewEmbeddingError(op, err, ErrCodeInvalidInput, "invalid input: "+details)
}

func ErrUnauthorized(op string, err error) error {
	return NewEmbeddingError(op, err, ErrCodeUnauthorized, "invalid API key")
}

func ErrRateLimitExceeded(op string, err error) error {
	return NewEmbeddingError(op, err, ErrCodeRateLimitExceeded, "rate limit exceeded for embedding requests")
}

// ErrEmptyInput is returned before any request is made
func ErrEmptyInput(op string) error {
	return NewEmbeddingError(op, nil, ErrCodeEmptyInput, "input text or documents cannot be empty")
}
