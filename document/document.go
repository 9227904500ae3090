package document

import "fmt"

// Metadata keys shared by loaders, the knowledge base and the document manager
const (
	MetaSource           = "source"
	MetaPage             = "page"
	MetaPageLabel        = "page_label"
	MetaFileID           = "file_id"
	MetaOriginalFilename = "original_filename"
	MetaChunkIndex       = "chunk_index"
)

// Document represents a text document with metadata
type Document struct {
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// MetaString returns metadata[key] rendered as a string and whether it was present.
// Nil values count as absent.
func (d Document) MetaString(key string) (string, bool) {
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}
