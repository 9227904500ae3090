package llm

import (
	"errors"
	"fmt"
)

// Error codes carried by LLMError
const (
	ErrInvalidInput       = "InvalidInput"
	ErrUnauthorized       = "Unauthorized"
	ErrTokenLimitExceeded = "TokenLimitExceeded"
	ErrModelNotAvailable  = "ModelNotAvailable"
	ErrRateLimitExceeded  = "RateLimitExceeded"
	ErrContextCanceled    = "ContextCanceled"
	ErrAPIError           = "APIError"
	ErrInternal           = "Internal"
)

// LLMError wraps a provider failure with the operation that hit it
type LLMError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm.%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("llm.%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

func NewLLMError(op, code, message string, err error) *LLMError {
	return &LLMError{Op: op, Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first LLMError in err's chain, or "" if there is none
func CodeOf(err error) string {
	var e *LLMError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
