package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSplitter struct{}

func (failingSplitter) SplitText(string) ([]string, error) {
	return nil, errors.New("boom")
}

func TestCharacterSplitter_SplitText(t *testing.T) {
	s, err := NewCharacterSplitter(20, 5, " ")
	require.NoError(t, err)

	chunks, err := s.SplitText("alpha beta gamma delta epsilon zeta eta theta")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 20+5)
		assert.NotEmpty(t, c)
	}
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "theta"))

	chunks, err = s.SplitText("   ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCharacterSplitter_InvalidWindow(t *testing.T) {
	_, err := NewCharacterSplitter(10, 10, " ")
	require.Error(t, err)

	var se *SplitterError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "new_character_splitter", se.Op)
}

func TestRecursiveSplitter_SplitText(t *testing.T) {
	s, err := NewRecursiveSplitter(300, 50, "gpt-3.5-turbo")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}

	paragraph := strings.Repeat("Feed-forward networks use hidden size and dropout as hyperparameters. ", 20)
	text := paragraph + "\n\n" + paragraph + "\n\n" + paragraph

	chunks, err := s.SplitText(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, s.CountTokens(c), 300, "chunk %d", i)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}

	short, err := s.SplitText("What is attention?")
	require.NoError(t, err)
	assert.Equal(t, []string{"What is attention?"}, short)

	empty, err := s.SplitText("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNewRecursiveSplitter_Validation(t *testing.T) {
	_, err := NewRecursiveSplitter(0, 0, "gpt-3.5-turbo")
	assert.ErrorContains(t, err, "chunk size must be positive")

	_, err = NewRecursiveSplitter(100, -1, "gpt-3.5-turbo")
	assert.ErrorContains(t, err, "chunk overlap must be non-negative")
}

func TestCreateDocuments(t *testing.T) {
	s, err := NewCharacterSplitter(12, 0, " ")
	require.NoError(t, err)

	meta := map[string]interface{}{MetaSource: "notes.pdf", MetaPage: 0}
	docs, err := CreateDocuments(s, []string{"one two three four five"}, []map[string]interface{}{meta})
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)

	for i, d := range docs {
		assert.Equal(t, "notes.pdf", d.Metadata[MetaSource])
		assert.Equal(t, i, d.Metadata[MetaChunkIndex])
	}

	// chunks must not share the caller's map
	docs[0].Metadata["extra"] = true
	_, leaked := meta["extra"]
	assert.False(t, leaked)
	assert.NotContains(t, docs[1].Metadata, "extra")
}

func TestCreateDocuments_Errors(t *testing.T) {
	_, err := CreateDocuments(failingSplitter{}, []string{"a", "b"}, []map[string]interface{}{{}})
	assert.Equal(t, ErrMetadataTextMismatch, err)

	_, err = CreateDocuments(failingSplitter{}, []string{"a"}, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
}

func TestDocument_MetaString(t *testing.T) {
	d := Document{Metadata: map[string]interface{}{"page": 3, "source": "a.pdf", "nil": nil}}

	v, ok := d.MetaString("page")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	v, ok = d.MetaString("source")
	assert.True(t, ok)
	assert.Equal(t, "a.pdf", v)

	_, ok = d.MetaString("nil")
	assert.False(t, ok)
	_, ok = d.MetaString("missing")
	assert.False(t, ok)
}
