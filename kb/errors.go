package kb

import (
	"errors"
	"fmt"
)

var (
	ErrNoLLM         = errors.New("knowledge base has no LLM configured")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrEmptyFilter   = errors.New("refusing to remove with an empty filter")
)

// KBError wraps failures of a pipeline stage
type KBError struct {
	Op      string
	Source  string
	Message string
	Err     error
}

func (e *KBError) Error() string {
	msg := "kb." + e.Op
	if e.Source != "" {
		msg += " " + e.Source
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *KBError) Unwrap() error {
	return e.Err
}

func newError(op, source, message string, err error) error {
	return &KBError{Op: op, Source: source, Message: message, Err: err}
}

func errorf(op, format string, args ...any) error {
	return &KBError{Op: op, Message: fmt.Sprintf(format, args...)}
}
