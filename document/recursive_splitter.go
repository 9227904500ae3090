package document

import (
	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order until pieces fit the chunk size
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits on progressively finer separators and measures chunk
// length in tokens of the model's tiktoken encoding.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Model        string
	tokens       *TiktokenSplitter
	splitter     textsplitter.RecursiveCharacter
}

// NewRecursiveSplitter builds a token measured recursive splitter. Empty separators fall
// back to DefaultSeparators.
func NewRecursiveSplitter(chunkSize, chunkOverlap int, model string, separators ...string) (*RecursiveSplitter, error) {
	if err := validateWindow("new_recursive_splitter", chunkSize, chunkOverlap); err != nil {
		return nil, err
	}

	enc, err := encodingForModel("new_recursive_splitter", model)
	if err != nil {
		return nil, err
	}
	counter := &TiktokenSplitter{TokensPerChunk: chunkSize, ChunkOverlap: chunkOverlap, Model: model, encoding: enc}

	if len(separators) == 0 {
		separators = DefaultSeparators
	}

	return &RecursiveSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Model:        model,
		tokens:       counter,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(separators),
			textsplitter.WithLenFunc(counter.CountTokens),
		),
	}, nil
}

func (rs *RecursiveSplitter) SplitText(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	chunks, err := rs.splitter.SplitText(text)
	if err != nil {
		return nil, &SplitterError{
			Op:      "split_text",
			Message: "recursive split failed",
			Err:     err,
		}
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// CountTokens returns the token length used for sizing chunks
func (rs *RecursiveSplitter) CountTokens(text string) int {
	return rs.tokens.CountTokens(text)
}
