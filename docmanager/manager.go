// Package docmanager keeps the uploaded course PDFs and the JSON index of the ones
// that were indexed successfully.
package docmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/coursekb/logger"
	"github.com/Abraxas-365/coursekb/storage"
)

// TimeLayout is the upload_time format
const TimeLayout = "2006-01-02 15:04:05"

// Metadata describes one uploaded document
type Metadata struct {
	FileID           string `json:"file_id"`
	OriginalFilename string `json:"original_filename"`
	Filepath         string `json:"filepath"`
	Size             int64  `json:"size"`
	SizeFormatted    string `json:"size_formatted"`
	Hash             string `json:"hash"`
	UploadTime       string `json:"upload_time"`
	Indexed          bool   `json:"indexed,omitempty"`
}

// File is an upload as received from a form or the command line
type File struct {
	Name   string
	Reader io.Reader
}

// Result reports the outcome of an operation with a user-facing message
type Result struct {
	OK      bool
	Message string
	Err     error
}

// UploadResult carries the temporary metadata of a stored upload
type UploadResult struct {
	Result
	Metadata *Metadata
}

type Manager struct {
	store        storage.DataStore
	uploadDir    string
	metadataFile string
	maxFileSize  int64
	log          logger.Logger
	now          func() time.Time

	mu sync.Mutex
}

type Option func(*Manager)

// WithUploadDir sets the directory recorded in each record's filepath
func WithUploadDir(dir string) Option {
	return func(m *Manager) {
		m.uploadDir = dir
	}
}

// WithMetadataFile sets the object name of the JSON index
func WithMetadataFile(name string) Option {
	return func(m *Manager) {
		m.metadataFile = name
	}
}

func WithMaxFileSize(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxFileSize = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New builds a Manager over store. The local store creates its directory on construction.
func New(store storage.DataStore, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		uploadDir:    "UserUploads",
		metadataFile: "document_metadata.json",
		maxFileSize:  DefaultMaxFileSize,
		log:          logger.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing storage
func (m *Manager) Store() storage.DataStore {
	return m.store
}

// loadMetadata never fails: a missing index is empty and an unreadable one is logged and treated as empty
func (m *Manager) loadMetadata(ctx context.Context) map[string]Metadata {
	all := make(map[string]Metadata)

	data, err := storage.ReadAll(ctx, m.store, m.metadataFile)
	if storage.IsNotFound(err) {
		return all
	}
	if err != nil {
		m.log.Warn("unable to load metadata: %v", err)
		return all
	}
	if err := json.Unmarshal(data, &all); err != nil {
		m.log.Warn("unable to load metadata: %v", err)
		return make(map[string]Metadata)
	}
	return all
}

func (m *Manager) saveMetadata(ctx context.Context, all map[string]Metadata) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return newError("saveMetadata", ErrCodeMetadata, "", "failed to encode metadata", err)
	}
	if err := m.store.Put(ctx, m.metadataFile, &buf, storage.WithContentType("application/json")); err != nil {
		m.log.Error("unable to save metadata: %v", err)
		return newError("saveMetadata", ErrCodeMetadata, "", "failed to save metadata", err)
	}
	return nil
}

// CheckDuplicate returns the indexed record with the same content hash, or nil
func (m *Manager) CheckDuplicate(ctx context.Context, content []byte) *Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findHash(ctx, CalculateFileHash(content))
}

func (m *Manager) findHash(ctx context.Context, hash string) *Metadata {
	for _, meta := range m.loadMetadata(ctx) {
		if meta.Hash == hash {
			found := meta
			return &found
		}
	}
	return nil
}

// Upload validates and stores the file. The returned metadata is temporary: it is written to
// the index by SaveMetadata once indexing succeeds.
func (m *Manager) Upload(ctx context.Context, file File) UploadResult {
	const op = "Upload"

	content, err := io.ReadAll(io.LimitReader(file.Reader, m.maxFileSize+1))
	if err != nil {
		return failed(fmt.Sprintf("❌ failed to read file: %v", err),
			newError(op, ErrCodeInvalidFile, file.Name, "failed to read file", err))
	}

	if err := ValidatePDF(file.Name, content, m.maxFileSize); err != nil {
		msg := err.Error()
		var de *DocError
		if errors.As(err, &de) {
			msg = de.Message
		}
		return failed("❌ "+msg, err)
	}

	hash := CalculateFileHash(content)

	m.mu.Lock()
	duplicate := m.findHash(ctx, hash)
	m.mu.Unlock()
	if duplicate != nil {
		return failed(
			fmt.Sprintf("⚠️ file already exists!\nfilename: %s\nupload time: %s", duplicate.OriginalFilename, duplicate.UploadTime),
			newError(op, ErrCodeDuplicate, duplicate.FileID, "duplicate of "+duplicate.OriginalFilename, nil))
	}

	now := m.now()
	fileID := GenerateUniqueFilename(file.Name, now)
	if err := m.store.Put(ctx, fileID, bytes.NewReader(content), storage.WithContentType("application/pdf")); err != nil {
		return failed(fmt.Sprintf("❌ failed to save file: %v", err),
			newError(op, ErrCodeStorage, fileID, "failed to save file", err))
	}

	meta := &Metadata{
		FileID:           fileID,
		OriginalFilename: file.Name,
		Filepath:         path.Join(m.uploadDir, fileID),
		Size:             int64(len(content)),
		SizeFormatted:    FormatFileSize(int64(len(content))),
		Hash:             hash,
		UploadTime:       now.Format(TimeLayout),
	}
	m.log.Info("stored %s as %s (%s)", file.Name, fileID, meta.SizeFormatted)

	return UploadResult{
		Result:   Result{OK: true, Message: "✅ uploaded: " + file.Name},
		Metadata: meta,
	}
}

func failed(message string, err error) UploadResult {
	return UploadResult{Result: Result{Message: message, Err: err}}
}

// Delete removes the stored file and then its record
func (m *Manager) Delete(ctx context.Context, fileID string) Result {
	const op = "Delete"
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.loadMetadata(ctx)
	meta, ok := all[fileID]
	if !ok {
		return Result{Message: "❌ document not found", Err: newError(op, ErrCodeNotFound, fileID, "document not found", nil)}
	}

	if err := SafeRemove(ctx, m.store, meta.FileID); err != nil {
		return Result{
			Message: fmt.Sprintf("❌ failed to delete file: %v", err),
			Err:     newError(op, ErrCodeStorage, fileID, "failed to delete file", err),
		}
	}

	delete(all, fileID)
	if err := m.saveMetadata(ctx, all); err != nil {
		return Result{Message: fmt.Sprintf("❌ failed to save metadata: %v", err), Err: err}
	}

	m.log.Info("deleted %s (%s)", meta.OriginalFilename, fileID)
	return Result{OK: true, Message: "✅ deleted document: " + meta.OriginalFilename}
}

// List returns every indexed record, newest upload first
func (m *Manager) List(ctx context.Context) []Metadata {
	m.mu.Lock()
	all := m.loadMetadata(ctx)
	m.mu.Unlock()

	docs := make([]Metadata, 0, len(all))
	for _, meta := range all {
		docs = append(docs, meta)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].UploadTime != docs[j].UploadTime {
			return docs[i].UploadTime > docs[j].UploadTime
		}
		return docs[i].FileID > docs[j].FileID
	})
	return docs
}

// SaveMetadata records meta in the index under meta.FileID
func (m *Manager) SaveMetadata(ctx context.Context, meta Metadata) error {
	if meta.FileID == "" {
		return newError("SaveMetadata", ErrCodeMetadata, "", "file_id is required", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.loadMetadata(ctx)
	all[meta.FileID] = meta
	return m.saveMetadata(ctx, all)
}

// MarkAsIndexed flags a stored record as indexed.
//
// Deprecated: records are only written after indexing; use SaveMetadata.
func (m *Manager) MarkAsIndexed(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.loadMetadata(ctx)
	meta, ok := all[fileID]
	if !ok {
		return nil
	}
	meta.Indexed = true
	all[fileID] = meta
	return m.saveMetadata(ctx, all)
}

// Get returns the record for fileID, or nil
func (m *Manager) Get(ctx context.Context, fileID string) *Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.loadMetadata(ctx)[fileID]
	if !ok {
		return nil
	}
	return &meta
}

// Open streams the stored file of an indexed document
func (m *Manager) Open(ctx context.Context, fileID string) (io.ReadCloser, *Metadata, error) {
	meta := m.Get(ctx, fileID)
	if meta == nil {
		return nil, nil, newError("Open", ErrCodeNotFound, fileID, "document not found", nil)
	}
	rc, err := m.store.Get(ctx, meta.FileID)
	if err != nil {
		code := ErrCodeStorage
		if storage.IsNotFound(err) {
			code = ErrCodeNotFound
		}
		return nil, nil, newError("Open", code, fileID, "failed to open file", err)
	}
	return rc, meta, nil
}

// Discard removes the stored file of a temporary record whose indexing failed
func (m *Manager) Discard(ctx context.Context, meta *Metadata) error {
	if meta == nil {
		return nil
	}
	if err := SafeRemove(ctx, m.store, meta.FileID); err != nil {
		return newError("Discard", ErrCodeStorage, meta.FileID, "failed to remove file", err)
	}
	return nil
}
