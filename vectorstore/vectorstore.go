package vectorstore

import (
	"context"

	"github.com/Abraxas-365/coursekb/document"
	"github.com/Abraxas-365/coursekb/embedding"
	"github.com/google/uuid"
)

// Filter matches documents whose metadata equals every entry
type Filter map[string]interface{}

// Document extends document.Document with an id and a score
type Document struct {
	ID          string                 `json:"id,omitempty"`
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata"`
	Score       float32                `json:"score"`
}

// ToDocument converts a vectorstore.Document to document.Document
func (d Document) ToDocument() document.Document {
	return document.Document{
		PageContent: d.PageContent,
		Metadata:    d.Metadata,
	}
}

// FromDocument creates a vectorstore.Document from document.Document
func FromDocument(doc document.Document) Document {
	return Document{
		PageContent: doc.PageContent,
		Metadata:    doc.Metadata,
	}
}

// Store interface defines the operations that any vector database adapter must implement
type Store interface {
	// InitDB prepares collections or tables; forceRecreate drops existing data first
	InitDB(ctx context.Context, forceRecreate bool) error

	// AddDocuments adds documents with their precomputed vectors
	AddDocuments(ctx context.Context, docs []Document, vectors [][]float32) error

	// SimilaritySearch returns at most limit documents ordered by descending score
	SimilaritySearch(ctx context.Context, vector []float32, limit int, filter Filter) ([]Document, error)

	// Delete removes documents matching filter; an empty filter removes everything
	Delete(ctx context.Context, filter Filter) error
}

// VectorStore is the main struct that combines the database adapter and embedder
type VectorStore struct {
	store    Store
	embedder embedding.Embedder
	opts     *Options
}

// New creates a new VectorStore instance
func New(store Store, embedder embedding.Embedder, opts ...Option) *VectorStore {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &VectorStore{
		store:    store,
		embedder: embedder,
		opts:     options,
	}
}

// Options returns a copy of the current options
func (vs *VectorStore) Options() Options {
	return *vs.opts
}

// AddDocuments embeds docs and stores them, assigning ids where missing
func (vs *VectorStore) AddDocuments(ctx context.Context, docs []document.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	vsDocs := make([]Document, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
		vsDocs[i] = FromDocument(doc)
		vsDocs[i].ID = uuid.NewString()
		ids[i] = vsDocs[i].ID
	}

	vectors, err := vs.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, NewEmbeddingFailedError(vs.opts.StoreName, err)
	}
	if len(vectors) != len(vsDocs) {
		return nil, NewInvalidDimensionsError(vs.opts.StoreName, len(vsDocs), len(vectors))
	}
	if vs.opts.Dimensions > 0 {
		for _, v := range vectors {
			if len(v) != vs.opts.Dimensions {
				return nil, NewInvalidDimensionsError(vs.opts.StoreName, vs.opts.Dimensions, len(v))
			}
		}
	}

	if err := vs.store.AddDocuments(ctx, vsDocs, vectors); err != nil {
		return nil, err
	}
	return ids, nil
}

// SimilaritySearch performs a similarity search using the query text
func (vs *VectorStore) SimilaritySearch(ctx context.Context, query string, limit int, filter Filter) ([]Document, error) {
	if limit <= 0 {
		limit = vs.opts.TopK
	}

	vector, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, NewEmbeddingFailedError(vs.opts.StoreName, err)
	}

	vsDocs, err := vs.store.SimilaritySearch(ctx, vector, limit, vs.mergeFilter(filter))
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(vsDocs))
	for _, vsDoc := range vsDocs {
		if vs.opts.ScoreThreshold <= 0 || vsDoc.Score >= vs.opts.ScoreThreshold {
			docs = append(docs, vsDoc)
		}
	}

	return docs, nil
}

func (vs *VectorStore) mergeFilter(filter Filter) Filter {
	merged := make(Filter, len(vs.opts.Filters)+len(filter))
	for k, v := range vs.opts.Filters {
		merged[k] = v
	}
	for k, v := range filter {
		merged[k] = v
	}
	return merged
}

// Delete removes documents from the store
func (vs *VectorStore) Delete(ctx context.Context, filter Filter) error {
	return vs.store.Delete(ctx, filter)
}

// InitDB prepares the underlying store
func (vs *VectorStore) InitDB(ctx context.Context, forceRecreate bool) error {
	return vs.store.InitDB(ctx, forceRecreate)
}
