package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo represents metadata about a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
}

// DataStore is the object storage used for uploaded course files and their metadata index
type DataStore interface {
	Put(ctx context.Context, key string, data io.Reader, options ...PutOption) error
	// Get returns a NotFound StorageError for missing keys
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete returns a NotFound StorageError for missing keys
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Presigner is implemented by stores that can hand out temporary download URLs
type Presigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (PresignedURL, error)
}

// PresignedURL represents a presigned URL with its associated metadata
type PresignedURL struct {
	URL     string
	Method  string
	Headers map[string]string
}

// PutOption allows customizing Put operations
type PutOption func(*PutOptions)

// PutOptions contains configuration for Put operations
type PutOptions struct {
	ContentType        string
	Metadata           map[string]string
	ContentDisposition string
}

// ApplyPutOptions folds the options into a PutOptions value
func ApplyPutOptions(opts ...PutOption) PutOptions {
	var o PutOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithContentType sets the content type for the object
func WithContentType(contentType string) PutOption {
	return func(o *PutOptions) {
		o.ContentType = contentType
	}
}

// WithMetadata sets additional metadata for the object
func WithMetadata(metadata map[string]string) PutOption {
	return func(o *PutOptions) {
		o.Metadata = metadata
	}
}

// WithContentDisposition sets the Content-Disposition header for the object
func WithContentDisposition(contentDisposition string) PutOption {
	return func(o *PutOptions) {
		o.ContentDisposition = contentDisposition
	}
}

// ReadAll reads an object fully
func ReadAll(ctx context.Context, store DataStore, key string) ([]byte, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewStorageError("read", key, err, ErrCodeInternal, "failed to read object")
	}
	return data, nil
}
