// Package ingest runs uploaded files through the document manager and the knowledge base,
// tracking each submission as a resumable batch.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Abraxas-365/coursekb/adapters/pdfloader"
	"github.com/Abraxas-365/coursekb/batch"
	"github.com/Abraxas-365/coursekb/docmanager"
	"github.com/Abraxas-365/coursekb/document"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/Abraxas-365/coursekb/logger"
	"github.com/Abraxas-365/coursekb/vectorstore"
)

// Upload is one submitted file. Open is called at most once.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

func (u Upload) info() batch.FileInfo {
	return batch.FileInfo{Name: u.Name, Size: u.Size}
}

// FromBytes wraps an in-memory file
func FromBytes(name string, content []byte) Upload {
	return Upload{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// FromPath wraps a file on disk, named by its base name
func FromPath(path string) (Upload, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	if fi.IsDir() {
		return Upload{}, fmt.Errorf("%s is a directory", path)
	}
	return Upload{
		Name: filepath.Base(path),
		Size: fi.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FileError is the failure of a single file; Message is what the batch state records
type FileError struct {
	File    string
	Message string
	Err     error
}

func (e *FileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrNoText is returned for PDFs without any extractable text
var ErrNoText = errors.New("no text could be extracted from the PDF")

type Processor struct {
	docs     *docmanager.Manager
	kb       *kb.KnowledgeBase
	store    batch.Store
	log      logger.Logger
	onChange func(*batch.State)
}

type Option func(*Processor)

func WithLogger(l logger.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithProgress registers a callback invoked with a copy of the state after every transition
func WithProgress(fn func(*batch.State)) Option {
	return func(p *Processor) {
		p.onChange = fn
	}
}

func NewProcessor(docs *docmanager.Manager, knowledge *kb.KnowledgeBase, store batch.Store, opts ...Option) *Processor {
	p := &Processor{
		docs:  docs,
		kb:    knowledge,
		store: store,
		log:   logger.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Batch returns a stored batch state
func (p *Processor) Batch(ctx context.Context, batchID string) (*batch.State, error) {
	return p.store.Get(ctx, batchID)
}

// ProcessBatch uploads and indexes every file of uploads that is still pending or failed in
// the stored state for the same file set. Per-file failures are recorded in the returned
// state; the error is reserved for state persistence and cancellation.
func (p *Processor) ProcessBatch(ctx context.Context, uploads []Upload) (*batch.State, error) {
	infos := make([]batch.FileInfo, len(uploads))
	for i, u := range uploads {
		infos[i] = u.info()
	}

	batchID := batch.GenerateID(infos)
	if batchID == "" {
		return batch.NewState(nil, ""), nil
	}

	state, err := p.store.Get(ctx, batchID)
	switch {
	case errors.Is(err, batch.ErrNotFound):
		state = batch.NewState(infos, batchID)
		if err := p.save(ctx, state); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	default:
		p.log.Info("resuming %s: %s", batchID, state.Summary())
	}

	seen := make(map[string]bool, len(uploads))
	for _, u := range uploads {
		key := batch.FileKey(u.info())
		if seen[key] || !state.ShouldProcess(key) {
			continue
		}
		seen[key] = true

		if err := ctx.Err(); err != nil {
			return state, err
		}

		state.UpdateFileStatus(key, batch.StatusProcessing, "", 0)
		if err := p.save(ctx, state); err != nil {
			return state, err
		}

		if err := p.processFile(ctx, u); err != nil {
			msg := err.Error()
			var fe *FileError
			if errors.As(err, &fe) {
				msg = fe.Message
			}
			p.log.Warn("failed to ingest %s: %v", u.Name, err)
			state.UpdateFileStatus(key, batch.StatusFailed, msg, 0)
		} else {
			state.UpdateFileStatus(key, batch.StatusSuccess, "", 1)
		}

		if err := p.save(ctx, state); err != nil {
			return state, err
		}
	}

	p.log.Info("%s: %s", batchID, state.Summary())
	return state, nil
}

func (p *Processor) save(ctx context.Context, state *batch.State) error {
	if err := p.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save batch %s: %w", state.BatchID, err)
	}
	if p.onChange != nil {
		p.onChange(state.Clone())
	}
	return nil
}

func (p *Processor) processFile(ctx context.Context, u Upload) error {
	rc, err := u.Open()
	if err != nil {
		return &FileError{File: u.Name, Message: "❌ failed to read file", Err: err}
	}
	defer rc.Close()

	var content bytes.Buffer
	res := p.docs.Upload(ctx, docmanager.File{Name: u.Name, Reader: io.TeeReader(rc, &content)})
	if !res.OK {
		return &FileError{File: u.Name, Message: res.Message, Err: res.Err}
	}
	meta := res.Metadata

	if err := p.index(ctx, meta, content.Bytes()); err != nil {
		if derr := p.docs.Discard(ctx, meta); derr != nil {
			p.log.Error("failed to discard %s: %v", meta.FileID, derr)
		}
		return &FileError{File: u.Name, Message: "❌ " + err.Error(), Err: err}
	}

	meta.Indexed = true
	if err := p.docs.SaveMetadata(ctx, *meta); err != nil {
		// the chunks are searchable but the document would be invisible to List and Delete
		_ = p.kb.RemoveSource(ctx, vectorstore.Filter{document.MetaFileID: meta.FileID})
		_ = p.docs.Discard(ctx, meta)
		return &FileError{File: u.Name, Message: "❌ failed to save metadata", Err: err}
	}
	return nil
}

func (p *Processor) index(ctx context.Context, meta *docmanager.Metadata, content []byte) error {
	pages, err := pdfloader.ParseBytes(content, meta.Filepath, map[string]interface{}{
		document.MetaFileID:           meta.FileID,
		document.MetaOriginalFilename: meta.OriginalFilename,
	})
	if err != nil {
		return fmt.Errorf("failed to parse PDF: %w", err)
	}

	docs := make([]document.Document, len(pages))
	for i, pg := range pages {
		docs[i] = pg.ToDocument()
	}

	result, err := p.kb.Index(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	if result.Chunks == 0 {
		return ErrNoText
	}
	return nil
}

// Delete removes the chunks of an indexed document and then the document itself
func (p *Processor) Delete(ctx context.Context, fileID string) docmanager.Result {
	if p.docs.Get(ctx, fileID) == nil {
		return p.docs.Delete(ctx, fileID)
	}
	if err := p.kb.RemoveSource(ctx, vectorstore.Filter{document.MetaFileID: fileID}); err != nil {
		return docmanager.Result{Message: fmt.Sprintf("❌ failed to remove indexed chunks: %v", err), Err: err}
	}
	return p.docs.Delete(ctx, fileID)
}
