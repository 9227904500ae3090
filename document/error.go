package document

import "fmt"

// SplitterError represents errors that can occur during text splitting
type SplitterError struct {
	Op      string
	Message string
	Err     error
}

func (e *SplitterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("splitter.%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("splitter.%s: %s", e.Op, e.Message)
}

func (e *SplitterError) Unwrap() error {
	return e.Err
}

var (
	ErrMetadataTextMismatch = &SplitterError{
		Op:      "split_documents",
		Message: "number of texts and metadata entries must match",
	}
)

// validateWindow checks the size/overlap pair shared by every splitter
func validateWindow(op string, size, overlap int) error {
	if size <= 0 {
		return &SplitterError{
			Op:      op,
			Message: "chunk size must be positive",
			Err:     fmt.Errorf("invalid chunk size: %d", size),
		}
	}
	if overlap < 0 {
		return &SplitterError{
			Op:      op,
			Message: "chunk overlap must be non-negative",
			Err:     fmt.Errorf("invalid chunk overlap: %d", overlap),
		}
	}
	if overlap >= size {
		return &SplitterError{
			Op:      op,
			Message: "chunk overlap must be less than chunk size",
			Err:     fmt.Errorf("overlap %d >= chunk size %d", overlap, size),
		}
	}
	return nil
}
