package datasource

import (
	"errors"
	"fmt"
)

// Error codes carried by DataSourceError
const (
	ErrCodeNotFound          = "NotFound"
	ErrCodeInvalidSource     = "InvalidSource"
	ErrCodeAccessDenied      = "AccessDenied"
	ErrCodeInvalidFormat     = "InvalidFormat"
	ErrCodeRateLimitExceeded = "RateLimitExceeded"
	ErrCodeInternal          = "Internal"
)

// DataSourceError reports a loader failure. Source names the loader ("pdf", "web", "s3").
type DataSourceError struct {
	Source  string
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *DataSourceError) Error() string {
	msg := fmt.Sprintf("datasource.%s [%s]: %s", e.Op, e.Source, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

func NewDataSourceError(source, op string, err error, code, message string) *DataSourceError {
	return &DataSourceError{Source: source, Op: op, Code: code, Message: message, Err: err}
}

// IsCode reports whether err wraps a DataSourceError with code
func IsCode(err error, code string) bool {
	var e *DataSourceError
	return errors.As(err, &e) && e.Code == code
}
