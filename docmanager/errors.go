package docmanager

import (
	"errors"
	"fmt"
)

// ErrorCode classifies document manager failures
type ErrorCode string

const (
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeDuplicate   ErrorCode = "DUPLICATE"
	ErrCodeInvalidFile ErrorCode = "INVALID_FILE"
	ErrCodeStorage     ErrorCode = "STORAGE"
	ErrCodeMetadata    ErrorCode = "METADATA"
)

// DocError is returned by every Manager operation
type DocError struct {
	Op      string
	Code    ErrorCode
	FileID  string
	Message string
	Err     error
}

func (e *DocError) Error() string {
	msg := fmt.Sprintf("docmanager.%s: %s: %s", e.Op, e.Code, e.Message)
	if e.FileID != "" {
		msg += " (" + e.FileID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DocError) Unwrap() error {
	return e.Err
}

func newError(op string, code ErrorCode, fileID, message string, err error) *DocError {
	return &DocError{Op: op, Code: code, FileID: fileID, Message: message, Err: err}
}

// IsCode reports whether err is a DocError with code
func IsCode(err error, code ErrorCode) bool {
	var de *DocError
	return errors.As(err, &de) && de.Code == code
}
