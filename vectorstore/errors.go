package vectorstore

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a VectorStoreError
type ErrorCode string

const (
	ErrCodeInitFailed        ErrorCode = "INIT_FAILED"
	ErrCodeAddFailed         ErrorCode = "ADD_FAILED"
	ErrCodeSearchFailed      ErrorCode = "SEARCH_FAILED"
	ErrCodeDeleteFailed      ErrorCode = "DELETE_FAILED"
	ErrCodeInvalidDimensions ErrorCode = "INVALID_DIMENSIONS"
	ErrCodeInvalidFilter     ErrorCode = "INVALID_FILTER"
	ErrCodeInvalidLimit      ErrorCode = "INVALID_LIMIT"
	ErrCodeEmbeddingFailed   ErrorCode = "EMBEDDING_FAILED"
)

// VectorStoreError is returned by the chromem and pgvector stores and by Store
type VectorStoreError struct {
	Code    ErrorCode
	Op      string
	Store   string
	Message string
	Err     error
}

func (e *VectorStoreError) Error() string {
	msg := fmt.Sprintf("%s: %s (store: %s, operation: %s)", e.Code, e.Message, e.Store, e.Op)
	if e.Err != nil {
		msg += " - " + e.Err.Error()
	}
	return msg
}

func (e *VectorStoreError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is a VectorStoreError with the given code
func IsCode(err error, code ErrorCode) bool {
	var vsErr *VectorStoreError
	return errors.As(err, &vsErr) && vsErr.Code == code
}

func newError(code ErrorCode, op, store, message string, err error) error {
	return &VectorStoreError{Code: code, Op: op, Store: store, Message: message, Err: err}
}

func NewInitFailedError(store string, err error) error {
	return newError(ErrCodeInitFailed, "InitDB", store, "failed to initialize database", err)
}

func NewAddFailedError(store string, err error) error {
	return newError(ErrCodeAddFailed, "AddDocuments", store, "failed to add documents", err)
}

func NewSearchFailedError(store string, err error) error {
	return newError(ErrCodeSearchFailed, "SimilaritySearch", store, "failed to perform similarity search", err)
}

func NewDeleteFailedError(store string, err error) error {
	return newError(ErrCodeDeleteFailed, "Delete", store, "failed to delete documents", err)
}

// NewInvalidDimensionsError reports an embedding whose width does not match the collection
func NewInvalidDimensionsError(store string, expected, got int) error {
	return newError(ErrCodeInvalidDimensions, "AddDocuments", store,
		fmt.Sprintf("invalid vector dimensions: expected %d, got %d", expected, got), nil)
}

func NewInvalidFilterError(store string, details string) error {
	return newError(ErrCodeInvalidFilter, "Filter", store, "invalid filter: "+details, nil)
}

func NewInvalidLimitError(store string, limit int) error {
	return newError(ErrCodeInvalidLimit, "SimilaritySearch", store,
		fmt.Sprintf("limit must be positive, got %d", limit), nil)
}

// NewEmbeddingFailedError wraps an embedder failure hit while adding or searching
func NewEmbeddingFailedError(store string, err error) error {
	return newError(ErrCodeEmbeddingFailed, "Embedding", store, "failed to generate embeddings", err)
}
