package batch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeFiles = []FileInfo{{Name: "a.pdf", Size: 10}, {Name: "b.pdf", Size: 20}, {Name: "c.pdf", Size: 30}}

func TestGenerateID(t *testing.T) {
	assert.Equal(t, "", GenerateID(nil))

	id := GenerateID([]FileInfo{{Name: "b.pdf", Size: 20}, {Name: "a.pdf", Size: 10}})
	assert.Equal(t, "batch_fbd517fe18c6", id)
	assert.Equal(t, id, GenerateID([]FileInfo{{Name: "a.pdf", Size: 10}, {Name: "b.pdf", Size: 20}}))
	assert.NotEqual(t, id, GenerateID([]FileInfo{{Name: "a.pdf", Size: 11}, {Name: "b.pdf", Size: 20}}))
}

func TestNewState(t *testing.T) {
	s := NewState(threeFiles, "batch_x")

	assert.Equal(t, "batch_x", s.BatchID)
	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, OverallIdle, s.OverallStatus)
	assert.Zero(t, s.CompletedFiles)
	_, err := time.Parse(time.RFC3339, s.BatchTimestamp)
	assert.NoError(t, err)

	f := s.Files["a.pdf_10"]
	require.NotNil(t, f)
	assert.Equal(t, FileState{Filename: "a.pdf", Size: 10, Status: StatusPending}, *f)
	assert.Equal(t, []string{"a.pdf_10", "b.pdf_20", "c.pdf_30"}, s.PendingFiles())
	assert.Equal(t, "Total 3 files - ⏸️ Pending: 3", s.Summary())
}

func TestUpdateFileStatus(t *testing.T) {
	s := NewState(threeFiles, "b")

	s.UpdateFileStatus("a.pdf_10", StatusProcessing, "", 0.5)
	assert.Equal(t, 0.5, s.Files["a.pdf_10"].Progress)
	assert.Equal(t, OverallIdle, s.OverallStatus)

	s.UpdateFileStatus("a.pdf_10", StatusSuccess, "", 1.0)
	assert.NotNil(t, s.Files["a.pdf_10"].UploadTime)
	assert.Equal(t, 1, s.SuccessCount)
	assert.Equal(t, OverallProcessing, s.OverallStatus)

	s.UpdateFileStatus("b.pdf_20", StatusFailed, "not a PDF")
	assert.Equal(t, "not a PDF", s.Files["b.pdf_20"].Error)
	assert.Equal(t, 0.0, s.Files["b.pdf_20"].Progress)
	assert.Equal(t, []string{"b.pdf_20"}, s.FailedFiles())
	assert.InDelta(t, 2.0/3.0, s.Progress(), 1e-9)
	assert.Equal(t, "Total 3 files - ✅ Success: 1 | ❌ Failed: 1 | ⏸️ Pending: 1", s.Summary())

	// a retry keeps the old error until a new one is set, and the failed count drops
	s.UpdateFileStatus("b.pdf_20", StatusProcessing, "")
	assert.Equal(t, "not a PDF", s.Files["b.pdf_20"].Error)
	assert.Equal(t, 0, s.FailedCount)
	assert.Equal(t, 1, s.CompletedFiles)

	s.UpdateFileStatus("b.pdf_20", StatusSuccess, "")
	s.UpdateFileStatus("c.pdf_30", StatusSuccess, "")
	assert.Equal(t, OverallCompleted, s.OverallStatus)
	assert.Equal(t, 1.0, s.Progress())
	assert.Equal(t, "Total 3 files - ✅ Success: 3", s.Summary())

	before := *s
	s.UpdateFileStatus("zzz_1", StatusFailed, "x")
	assert.Equal(t, before.CompletedFiles, s.CompletedFiles)
}

func TestShouldProcess(t *testing.T) {
	s := NewState(threeFiles, "b")
	s.UpdateFileStatus("a.pdf_10", StatusSuccess, "")
	s.UpdateFileStatus("b.pdf_20", StatusFailed, "boom")
	s.UpdateFileStatus("c.pdf_30", StatusProcessing, "")

	tests := []struct {
		key  string
		want bool
	}{
		{"a.pdf_10", false},
		{"b.pdf_20", true},
		{"c.pdf_30", false},
		{"missing_0", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ShouldProcess(tt.key))
		})
	}

	assert.True(t, NewState(threeFiles, "b").ShouldProcess("a.pdf_10"))
}

func TestEmptyBatch(t *testing.T) {
	s := NewState(nil, "")
	assert.Equal(t, 1.0, s.Progress())
	assert.Equal(t, "Total 0 files - ", s.Summary())
}

func TestDuplicateKeysTrackedOnce(t *testing.T) {
	s := NewState([]FileInfo{{Name: "a.pdf", Size: 1}, {Name: "a.pdf", Size: 1}}, "b")
	assert.Equal(t, 1, s.TotalFiles)
	s.UpdateFileStatus("a.pdf_1", StatusSuccess, "")
	assert.Equal(t, OverallCompleted, s.OverallStatus)
}

func TestStateJSON(t *testing.T) {
	s := NewState(threeFiles[:1], "batch_1")
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "idle", raw["overall_status"])
	file := raw["files"].(map[string]interface{})["a.pdf_10"].(map[string]interface{})
	assert.Nil(t, file["upload_time"])
	assert.Equal(t, "pending", file["status"])
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	s := NewState(threeFiles, "batch_1")
	require.NoError(t, store.Save(ctx, s))

	// saved copies are isolated from later mutation
	s.UpdateFileStatus("a.pdf_10", StatusSuccess, "")
	got, err := store.Get(ctx, "batch_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Files["a.pdf_10"].Status)

	require.NoError(t, store.Delete(ctx, "batch_1"))
	_, err = store.Get(ctx, "batch_1")
	assert.ErrorIs(t, err, ErrNotFound)
}
