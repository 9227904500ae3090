package docmanager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/coursekb/adapters/local"
	"github.com/Abraxas-365/coursekb/logger"
	"github.com/Abraxas-365/coursekb/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj<<>>endobj\n%%EOF")

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newManager(t *testing.T) (*Manager, *local.Store) {
	t.Helper()
	store, err := local.NewStore(t.TempDir())
	require.NoError(t, err)
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)}
	return New(store, WithClock(c.now), WithLogger(logger.Nop{})), store
}

func upload(t *testing.T, m *Manager, name string, content []byte) UploadResult {
	t.Helper()
	return m.Upload(context.Background(), File{Name: name, Reader: bytes.NewReader(content)})
}

func TestManager_UploadDoesNotIndex(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	res := upload(t, m, "lecture1.pdf", samplePDF)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "✅ uploaded: lecture1.pdf", res.Message)

	meta := res.Metadata
	require.NotNil(t, meta)
	assert.Equal(t, "lecture1.pdf", meta.OriginalFilename)
	assert.Equal(t, "UserUploads/"+meta.FileID, meta.Filepath)
	assert.Equal(t, int64(len(samplePDF)), meta.Size)
	assert.Equal(t, CalculateFileHash(samplePDF), meta.Hash)
	assert.Equal(t, "2024-05-01 09:01:00", meta.UploadTime)

	exists, err := store.Exists(ctx, meta.FileID)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Empty(t, m.List(ctx))
	assert.Nil(t, m.CheckDuplicate(ctx, samplePDF))

	// not indexed yet, so the same content may be uploaded again
	again := upload(t, m, "copy.pdf", samplePDF)
	assert.True(t, again.OK)
}

func TestManager_Duplicate(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	res := upload(t, m, "lecture1.pdf", samplePDF)
	require.True(t, res.OK)
	require.NoError(t, m.SaveMetadata(ctx, *res.Metadata))

	dup := m.CheckDuplicate(ctx, samplePDF)
	require.NotNil(t, dup)
	assert.Equal(t, res.Metadata.FileID, dup.FileID)

	second := upload(t, m, "renamed.pdf", samplePDF)
	assert.False(t, second.OK)
	assert.Nil(t, second.Metadata)
	assert.True(t, IsCode(second.Err, ErrCodeDuplicate))
	assert.Equal(t, "⚠️ file already exists!\nfilename: lecture1.pdf\nupload time: "+res.Metadata.UploadTime, second.Message)
}

func TestManager_UploadInvalid(t *testing.T) {
	m, _ := newManager(t)

	res := upload(t, m, "notes.txt", []byte("plain"))
	assert.False(t, res.OK)
	assert.Equal(t, "❌ only PDF files are supported", res.Message)

	small := New(m.Store(), WithMaxFileSize(8), WithLogger(logger.Nop{}))
	res = small.Upload(context.Background(), File{Name: "big.pdf", Reader: bytes.NewReader(samplePDF)})
	assert.False(t, res.OK)
	assert.True(t, IsCode(res.Err, ErrCodeInvalidFile))
}

func TestManager_ListSortedNewestFirst(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		content := append([]byte{}, samplePDF...)
		content = append(content, byte('0'+i))
		res := upload(t, m, name, content)
		require.True(t, res.OK)
		require.NoError(t, m.SaveMetadata(ctx, *res.Metadata))
	}

	docs := m.List(ctx)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"c.pdf", "b.pdf", "a.pdf"},
		[]string{docs[0].OriginalFilename, docs[1].OriginalFilename, docs[2].OriginalFilename})
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	res := m.Delete(ctx, "missing.pdf")
	assert.False(t, res.OK)
	assert.Equal(t, "❌ document not found", res.Message)
	assert.True(t, IsCode(res.Err, ErrCodeNotFound))

	up := upload(t, m, "lecture1.pdf", samplePDF)
	require.NoError(t, m.SaveMetadata(ctx, *up.Metadata))

	res = m.Delete(ctx, up.Metadata.FileID)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "✅ deleted document: lecture1.pdf", res.Message)
	assert.Nil(t, m.Get(ctx, up.Metadata.FileID))

	exists, err := store.Exists(ctx, up.Metadata.FileID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManager_DeleteMissingFileStillDropsRecord(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	up := upload(t, m, "lecture1.pdf", samplePDF)
	require.NoError(t, m.SaveMetadata(ctx, *up.Metadata))
	require.NoError(t, store.Delete(ctx, up.Metadata.FileID))

	res := m.Delete(ctx, up.Metadata.FileID)
	assert.True(t, res.OK)
	assert.Empty(t, m.List(ctx))
}

type brokenDeleteStore struct {
	storage.DataStore
}

func (brokenDeleteStore) Delete(context.Context, string) error {
	return storage.NewStorageError("Delete", "", errors.New("disk busy"), storage.ErrCodeInternal, "failed")
}

func TestManager_DeleteFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	up := upload(t, m, "lecture1.pdf", samplePDF)
	require.NoError(t, m.SaveMetadata(ctx, *up.Metadata))

	broken := New(brokenDeleteStore{store}, WithLogger(logger.Nop{}))
	res := broken.Delete(ctx, up.Metadata.FileID)
	assert.False(t, res.OK)
	assert.True(t, strings.HasPrefix(res.Message, "❌ failed to delete file:"))
	assert.NotNil(t, m.Get(ctx, up.Metadata.FileID))
}

func TestManager_CorruptIndex(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	require.NoError(t, store.Put(ctx, "document_metadata.json", strings.NewReader("{not json")))
	assert.Empty(t, m.List(ctx))

	// a save replaces the corrupt index
	up := upload(t, m, "lecture1.pdf", samplePDF)
	require.NoError(t, m.SaveMetadata(ctx, *up.Metadata))
	assert.Len(t, m.List(ctx), 1)
}

func TestManager_IndexFormat(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	up := upload(t, m, "深度学习 <intro>.pdf", samplePDF)
	require.True(t, up.OK)
	require.NoError(t, m.SaveMetadata(ctx, *up.Metadata))
	require.NoError(t, m.MarkAsIndexed(ctx, up.Metadata.FileID))
	require.NoError(t, m.MarkAsIndexed(ctx, "unknown"))

	data, err := storage.ReadAll(ctx, store, "document_metadata.json")
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"original_filename": "深度学习 <intro>.pdf"`)
	assert.Contains(t, text, "\n  \""+up.Metadata.FileID+"\": {")
	assert.Contains(t, text, `"indexed": true`)
}

func TestManager_OpenAndDiscard(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	up := upload(t, m, "lecture1.pdf", samplePDF)
	_, _, err := m.Open(ctx, up.Metadata.FileID)
	assert.True(t, IsCode(err, ErrCodeNotFound), "temporary uploads are not served")

	require.NoError(t, m.SaveMetadata(ctx, *up.Metadata))
	rc, meta, err := m.Open(ctx, up.Metadata.FileID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, samplePDF, body)
	assert.Equal(t, "lecture1.pdf", meta.OriginalFilename)

	other := upload(t, m, "failed.pdf", append(append([]byte{}, samplePDF...), 'x'))
	require.NoError(t, m.Discard(ctx, other.Metadata))
	exists, err := store.Exists(ctx, other.Metadata.FileID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, m.Discard(ctx, other.Metadata))
	assert.NoError(t, m.Discard(ctx, nil))
}

func TestManager_SaveMetadataRequiresID(t *testing.T) {
	m, _ := newManager(t)
	assert.True(t, IsCode(m.SaveMetadata(context.Background(), Metadata{}), ErrCodeMetadata))
}

func TestManager_UploadDottedName(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)

	res := upload(t, m, "week1..final.pdf", samplePDF)
	require.True(t, res.OK, res.Message)
	assert.NotContains(t, res.Metadata.FileID, "..")
	assert.Equal(t, "week1..final.pdf", res.Metadata.OriginalFilename)

	exists, err := store.Exists(ctx, res.Metadata.FileID)
	require.NoError(t, err)
	assert.True(t, exists)
}
