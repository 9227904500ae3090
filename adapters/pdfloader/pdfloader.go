// Package pdfloader extracts page text from PDF files with github.com/ledongthuc/pdf.
package pdfloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Abraxas-365/coursekb/datasource"
	"github.com/Abraxas-365/coursekb/document"
	"github.com/Abraxas-365/coursekb/logger"
	"github.com/ledongthuc/pdf"
)

const sourceName = "pdf"

// Page is the plain text of one PDF page. Number is one-based.
type Page struct {
	Number int
	Text   string
}

// ParsePages reads every page that has extractable text.
func ParsePages(r io.ReaderAt, size int64) (pages []Page, total int, err error) {
	defer func() {
		// the pdf package panics on some malformed inputs
		if rec := recover(); rec != nil {
			pages, total = nil, 0
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, 0, err
	}

	total = reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, total, nil
}

// ParseBytes is ParsePages over an in-memory file, returning one document per page.
// extra is copied into every page's metadata.
func ParseBytes(content []byte, source string, extra map[string]interface{}) ([]datasource.Document, error) {
	pages, total, err := ParsePages(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, datasource.NewDataSourceError(sourceName, "ParseBytes", err,
			datasource.ErrCodeInvalidFormat, "failed to parse "+source)
	}
	return pageDocuments(pages, total, source, extra), nil
}

func pageDocuments(pages []Page, total int, source string, extra map[string]interface{}) []datasource.Document {
	docs := make([]datasource.Document, 0, len(pages))
	for _, p := range pages {
		meta := make(map[string]interface{}, len(extra)+4)
		for k, v := range extra {
			meta[k] = v
		}
		meta[document.MetaSource] = source
		meta[document.MetaPage] = p.Number - 1
		meta[document.MetaPageLabel] = strconv.Itoa(p.Number)
		meta["total_pages"] = total

		docs = append(docs, datasource.Document{
			Content:  p.Text,
			Metadata: meta,
			Source:   source,
		})
	}
	return docs
}

// DirectoryLoader loads every file in a directory matching a glob as PDF pages.
type DirectoryLoader struct {
	dir        string
	glob       string
	skipErrors bool
	log        logger.Logger
}

// Option configures a DirectoryLoader
type Option func(*DirectoryLoader)

// WithSkipErrors logs and skips unreadable files instead of failing the load
func WithSkipErrors(skip bool) Option {
	return func(l *DirectoryLoader) {
		l.skipErrors = skip
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(l *DirectoryLoader) {
		l.log = log
	}
}

func NewDirectoryLoader(dir, glob string, opts ...Option) *DirectoryLoader {
	if glob == "" {
		glob = "*.pdf"
	}
	l := &DirectoryLoader{dir: dir, glob: glob, log: logger.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *DirectoryLoader) Load(ctx context.Context, opts ...datasource.Option) ([]datasource.Document, error) {
	options := datasource.NewLoadOptions(opts...)

	paths, err := l.match(options.Recursive)
	if err != nil {
		return nil, err
	}

	var documents []datasource.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if options.Full(len(documents)) {
			break
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, datasource.NewDataSourceError(sourceName, "Load", err,
				datasource.ErrCodeNotFound, "failed to stat "+path)
		}
		fileMeta := map[string]interface{}{
			"path":          path,
			"size":          info.Size(),
			"last_modified": info.ModTime(),
		}
		if !options.Accept(fileMeta) {
			continue
		}

		pages, err := l.loadFile(path)
		if err != nil {
			if l.skipErrors {
				l.log.Warn("skipping %s: %v", path, err)
				continue
			}
			return nil, err
		}

		for _, doc := range pages {
			if options.Full(len(documents)) {
				break
			}
			doc.Metadata["last_modified"] = info.ModTime()
			documents = append(documents, doc)
		}
	}

	l.log.Info("loaded %d pages from %d files in %s", len(documents), len(paths), l.dir)
	return documents, nil
}

func (l *DirectoryLoader) loadFile(path string) ([]datasource.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, datasource.NewDataSourceError(sourceName, "loadFile", err,
			datasource.ErrCodeAccessDenied, "failed to open "+path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, datasource.NewDataSourceError(sourceName, "loadFile", err,
			datasource.ErrCodeInternal, "failed to stat "+path)
	}

	pages, total, err := ParsePages(f, info.Size())
	if err != nil {
		return nil, datasource.NewDataSourceError(sourceName, "loadFile", err,
			datasource.ErrCodeInvalidFormat, "failed to parse "+path)
	}
	return pageDocuments(pages, total, path, nil), nil
}

func (l *DirectoryLoader) match(recursive bool) ([]string, error) {
	if _, err := os.Stat(l.dir); err != nil {
		return nil, datasource.NewDataSourceError(sourceName, "Load", err,
			datasource.ErrCodeNotFound, "directory not found: "+l.dir)
	}

	var paths []string
	if !recursive {
		matches, err := filepath.Glob(filepath.Join(l.dir, l.glob))
		if err != nil {
			return nil, datasource.NewDataSourceError(sourceName, "Load", err,
				datasource.ErrCodeInvalidSource, "bad glob "+l.glob)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				paths = append(paths, m)
			}
		}
	} else {
		err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, err := filepath.Match(l.glob, d.Name())
			if err != nil {
				return err
			}
			if ok {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, datasource.NewDataSourceError(sourceName, "Load", err,
				datasource.ErrCodeInternal, "failed to walk "+l.dir)
		}
	}

	sort.Strings(paths)
	return paths, nil
}
