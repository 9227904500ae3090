// Package chromem stores vectors in an embedded github.com/philippgille/chromem-go database,
// in memory or persisted to a directory.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Abraxas-365/coursekb/vectorstore"
	"github.com/philippgille/chromem-go"
)

const storeName = "chromem"

// errNoEmbedding guards the collection against embedding text itself; vectors always
// come from the configured embedder.
var errNoEmbedding = errors.New("chromem: documents must carry precomputed embeddings")

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

type Options struct {
	// Collection name, "course_materials" when empty
	Collection string
	// Path enables persistence when set
	Path string
	// Compress gzips persisted files
	Compress bool
	// Concurrency for AddDocuments, runtime.NumCPU() when zero
	Concurrency int
}

type ChromemStore struct {
	db   *chromem.DB
	opts Options

	mu  sync.RWMutex
	col *chromem.Collection
}

var _ vectorstore.Store = (*ChromemStore)(nil)

// NewChromemStore opens (or creates) the database and its collection
func NewChromemStore(opts Options) (*ChromemStore, error) {
	if opts.Collection == "" {
		opts.Collection = "course_materials"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}

	var db *chromem.DB
	if opts.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, vectorstore.NewInitFailedError(storeName, err)
		}
	}

	s := &ChromemStore{db: db, opts: opts}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChromemStore) open() error {
	col, err := s.db.GetOrCreateCollection(s.opts.Collection, nil, rejectEmbedding)
	if err != nil {
		return vectorstore.NewInitFailedError(storeName, err)
	}
	s.mu.Lock()
	s.col = col
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) collection() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col
}

// InitDB makes sure the collection exists; forceRecreate empties it
func (s *ChromemStore) InitDB(ctx context.Context, forceRecreate bool) error {
	if forceRecreate {
		return s.reset()
	}
	return s.open()
}

func (s *ChromemStore) reset() error {
	if err := s.db.DeleteCollection(s.opts.Collection); err != nil {
		return vectorstore.NewInitFailedError(storeName, err)
	}
	return s.open()
}

// Count returns the number of stored chunks
func (s *ChromemStore) Count() int {
	return s.collection().Count()
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []vectorstore.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return vectorstore.NewInvalidDimensionsError(storeName, len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	chDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return vectorstore.NewAddFailedError(storeName, fmt.Errorf("document %d has no id", i))
		}
		chDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.PageContent,
			Metadata:  toStringMap(doc.Metadata),
			Embedding: vectors[i],
		}
	}

	if err := s.collection().AddDocuments(ctx, chDocs, s.opts.Concurrency); err != nil {
		return vectorstore.NewAddFailedError(storeName, err)
	}
	return nil
}

func (s *ChromemStore) SimilaritySearch(ctx context.Context, vector []float32, limit int, filter vectorstore.Filter) ([]vectorstore.Document, error) {
	if limit <= 0 {
		return nil, vectorstore.NewInvalidLimitError(storeName, limit)
	}

	col := s.collection()
	// chromem rejects a result count above the collection size
	if n := col.Count(); n == 0 {
		return nil, nil
	} else if limit > n {
		limit = n
	}

	results, err := col.QueryEmbedding(ctx, vector, limit, toStringMap(filter), nil)
	if err != nil {
		return nil, vectorstore.NewSearchFailedError(storeName, err)
	}

	docs := make([]vectorstore.Document, len(results))
	for i, r := range results {
		meta := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		docs[i] = vectorstore.Document{
			ID:          r.ID,
			PageContent: r.Content,
			Metadata:    meta,
			Score:       r.Similarity,
		}
	}
	return docs, nil
}

func (s *ChromemStore) Delete(ctx context.Context, filter vectorstore.Filter) error {
	if len(filter) == 0 {
		if err := s.reset(); err != nil {
			return vectorstore.NewDeleteFailedError(storeName, err)
		}
		return nil
	}
	if err := s.collection().Delete(ctx, toStringMap(filter), nil); err != nil {
		return vectorstore.NewDeleteFailedError(storeName, err)
	}
	return nil
}

// toStringMap flattens metadata to the string values chromem stores
func toStringMap(m map[string]interface{}) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case time.Time:
			out[k] = val.Format(time.RFC3339)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
