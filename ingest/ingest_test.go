package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Abraxas-365/coursekb/adapters/chromem"
	"github.com/Abraxas-365/coursekb/adapters/local"
	"github.com/Abraxas-365/coursekb/batch"
	"github.com/Abraxas-365/coursekb/docmanager"
	"github.com/Abraxas-365/coursekb/document"
	"github.com/Abraxas-365/coursekb/internal/pdftest"
	"github.com/Abraxas-365/coursekb/internal/testutil"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/Abraxas-365/coursekb/logger"
	"github.com/Abraxas-365/coursekb/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	proc    *Processor
	docs    *docmanager.Manager
	kb      *kb.KnowledgeBase
	vectors *chromem.ChromemStore
	files   *local.Store
	batches *batch.MemoryStore
	updates []*batch.State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	files, err := local.NewStore(t.TempDir())
	require.NoError(t, err)
	docs := docmanager.New(files, docmanager.WithLogger(logger.Nop{}))

	vectors, err := chromem.NewChromemStore(chromem.Options{})
	require.NoError(t, err)
	splitter, err := document.NewCharacterSplitter(200, 0, "\n")
	require.NoError(t, err)
	knowledge, err := kb.New(testutil.NewHashEmbedder(), vectors, splitter, kb.WithLogger(logger.Nop{}))
	require.NoError(t, err)
	require.NoError(t, knowledge.InitStore(ctx, true))

	f := &fixture{docs: docs, kb: knowledge, vectors: vectors, files: files, batches: batch.NewMemoryStore()}
	f.proc = NewProcessor(docs, knowledge, f.batches,
		WithLogger(logger.Nop{}),
		WithProgress(func(s *batch.State) { f.updates = append(f.updates, s) }))
	return f
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	lecture1 := FromBytes("lecture1.pdf", pdftest.Build("Backpropagation computes gradients"))
	lecture2 := FromBytes("lecture2.pdf", pdftest.Build("Convolutions share weights", "Pooling reduces resolution"))
	notes := FromBytes("notes.txt", []byte("plain text"))

	state, err := f.proc.ProcessBatch(ctx, []Upload{lecture1, lecture2, notes})
	require.NoError(t, err)

	assert.Equal(t, batch.OverallCompleted, state.OverallStatus)
	assert.Equal(t, 2, state.SuccessCount)
	assert.Equal(t, 1, state.FailedCount)
	assert.Equal(t, "Total 3 files - ✅ Success: 2 | ❌ Failed: 1", state.Summary())

	failed := state.Files[batch.FileKey(notes.info())]
	assert.Equal(t, batch.StatusFailed, failed.Status)
	assert.Equal(t, "❌ only PDF files are supported", failed.Error)
	assert.Equal(t, 1.0, state.Files[batch.FileKey(lecture1.info())].Progress)

	listed := f.docs.List(ctx)
	require.Len(t, listed, 2)
	for _, meta := range listed {
		assert.True(t, meta.Indexed)
	}
	assert.Equal(t, 3, f.vectors.Count())

	stored, err := f.batches.Get(ctx, state.BatchID)
	require.NoError(t, err)
	assert.Equal(t, state.Summary(), stored.Summary())

	// created, then processing and a result per file
	assert.Len(t, f.updates, 7)
	assert.Equal(t, batch.OverallIdle, f.updates[0].OverallStatus)
}

func TestProcessBatch_ChunkMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state, err := f.proc.ProcessBatch(ctx, []Upload{FromBytes("attention.pdf", pdftest.Build("Attention weights sum to one"))})
	require.NoError(t, err)
	require.Equal(t, 1, state.SuccessCount)

	meta := f.docs.List(ctx)[0]
	results, err := f.kb.SimilaritySearch(ctx, "attention weights", 1, vectorstore.Filter{document.MetaFileID: meta.FileID})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0].Metadata
	assert.Equal(t, meta.FileID, got[document.MetaFileID])
	assert.Equal(t, "attention.pdf", got[document.MetaOriginalFilename])
	assert.Equal(t, meta.Filepath, got[document.MetaSource])
	assert.Equal(t, "1", got[document.MetaPageLabel])
}

func TestProcessBatch_ResumesStoredState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	good := FromBytes("good.pdf", pdftest.Build("Dropout regularizes"))
	opens := 0
	flaky := Upload{
		Name: "flaky.pdf",
		Size: 42,
		Open: func() (io.ReadCloser, error) {
			opens++
			if opens == 1 {
				return nil, errors.New("connection reset")
			}
			return io.NopCloser(strings.NewReader(string(pdftest.Build("Batch norm")))), nil
		},
	}

	first, err := f.proc.ProcessBatch(ctx, []Upload{good, flaky})
	require.NoError(t, err)
	assert.Equal(t, 1, first.SuccessCount)
	assert.Equal(t, []string{"flaky.pdf_42"}, first.FailedFiles())
	assert.Equal(t, "❌ failed to read file", first.Files["flaky.pdf_42"].Error)

	f.updates = nil
	second, err := f.proc.ProcessBatch(ctx, []Upload{flaky, good})
	require.NoError(t, err)
	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Equal(t, 2, second.SuccessCount)
	assert.Equal(t, 0, second.FailedCount)
	assert.Equal(t, 2, opens)
	assert.Len(t, f.updates, 2, "only the failed file is retried")
	assert.Len(t, f.docs.List(ctx), 2)
}

func TestProcessBatch_BlankPDFIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state, err := f.proc.ProcessBatch(ctx, []Upload{FromBytes("scan.pdf", pdftest.Build(""))})
	require.NoError(t, err)

	fs := state.Files[batch.FileKey(batch.FileInfo{Name: "scan.pdf", Size: int64(len(pdftest.Build("")))})]
	require.NotNil(t, fs)
	assert.Equal(t, batch.StatusFailed, fs.Status)
	assert.Equal(t, "❌ "+ErrNoText.Error(), fs.Error)

	assert.Empty(t, f.docs.List(ctx))
	keys, err := f.files.List(ctx, "")
	require.NoError(t, err)
	for _, k := range keys {
		assert.Equal(t, "document_metadata.json", k.Key, "stored upload was discarded")
	}
}

func TestProcessBatch_Duplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	content := pdftest.Build("Transformers")

	_, err := f.proc.ProcessBatch(ctx, []Upload{FromBytes("a.pdf", content)})
	require.NoError(t, err)

	state, err := f.proc.ProcessBatch(ctx, []Upload{FromBytes("copy-of-a.pdf", content)})
	require.NoError(t, err)
	assert.Equal(t, 1, state.FailedCount)
	for _, fs := range state.Files {
		assert.True(t, strings.HasPrefix(fs.Error, "⚠️ file already exists!\nfilename: a.pdf"), fs.Error)
	}
	assert.Len(t, f.docs.List(ctx), 1)
}

func TestProcessBatch_Empty(t *testing.T) {
	f := newFixture(t)

	state, err := f.proc.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", state.BatchID)
	assert.Equal(t, 1.0, state.Progress())
	assert.Empty(t, f.updates)
}

func TestProcessBatch_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := f.proc.ProcessBatch(ctx, []Upload{FromBytes("a.pdf", pdftest.Build("x"))})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, state.PendingFiles(), 1)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.proc.ProcessBatch(ctx, []Upload{
		FromBytes("keep.pdf", pdftest.Build("Recurrent networks")),
		FromBytes("drop.pdf", pdftest.Build("Graph networks")),
	})
	require.NoError(t, err)
	require.Equal(t, 2, f.vectors.Count())

	var target docmanager.Metadata
	for _, meta := range f.docs.List(ctx) {
		if meta.OriginalFilename == "drop.pdf" {
			target = meta
		}
	}
	require.NotEmpty(t, target.FileID)

	res := f.proc.Delete(ctx, target.FileID)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "✅ deleted document: drop.pdf", res.Message)
	assert.Equal(t, 1, f.vectors.Count())
	assert.Len(t, f.docs.List(ctx), 1)

	res = f.proc.Delete(ctx, target.FileID)
	assert.False(t, res.OK)
	assert.Equal(t, "❌ document not found", res.Message)
}

func TestFromPath(t *testing.T) {
	_, err := FromPath(t.TempDir())
	assert.Error(t, err)

	_, err = FromPath("does-not-exist.pdf")
	assert.Error(t, err)
}
