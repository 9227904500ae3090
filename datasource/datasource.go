package datasource

import (
	"context"

	"github.com/Abraxas-365/coursekb/document"
)

// Document represents a document from a data source
type Document struct {
	Content  string
	Metadata map[string]interface{}
	Source   string
}

// DataSource represents a source of documents
type DataSource interface {
	// Load loads documents from the source
	Load(ctx context.Context, opts ...Option) ([]Document, error)
}

// ToDocument converts to a document.Document, recording Source under the source key
// unless the metadata already carries one.
func (d Document) ToDocument() document.Document {
	meta := make(map[string]interface{}, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		meta[k] = v
	}
	if _, ok := meta[document.MetaSource]; !ok && d.Source != "" {
		meta[document.MetaSource] = d.Source
	}
	return document.Document{PageContent: d.Content, Metadata: meta}
}
