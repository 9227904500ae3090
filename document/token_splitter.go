package document

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenSplitter cuts text into fixed windows of tokens.
type TiktokenSplitter struct {
	TokensPerChunk int
	ChunkOverlap   int
	Model          string
	encoding       *tiktoken.Tiktoken
}

// encodingPrefixes maps model name prefixes to tiktoken encodings; first match wins
var encodingPrefixes = []struct{ prefix, encoding string }{
	{"gpt-4o", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5-turbo", "cl100k_base"},
	{"text-embedding-", "cl100k_base"},
	{"text-davinci-001", "r50k_base"},
	{"text-davinci-", "p50k_base"},
	{"code-search-", "r50k_base"},
	{"code-", "p50k_base"},
	{"text-curie-", "r50k_base"},
	{"text-babbage-", "r50k_base"},
	{"text-ada-", "r50k_base"},
	{"text-similarity-", "r50k_base"},
	{"text-search-", "r50k_base"},
}

// getEncodingForModel falls back to cl100k_base, which also covers non-OpenAI models like bedrock's
func getEncodingForModel(model string) string {
	switch model {
	case "davinci", "curie", "babbage", "ada":
		return "r50k_base"
	}
	for _, p := range encodingPrefixes {
		if strings.HasPrefix(model, p.prefix) {
			return p.encoding
		}
	}
	return "cl100k_base"
}

// encodingForModel loads the tiktoken encoding used by model
func encodingForModel(op, model string) (*tiktoken.Tiktoken, error) {
	name := getEncodingForModel(model)
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, &SplitterError{
			Op:      op,
			Message: fmt.Sprintf("failed to get %s encoding for model %s", name, model),
			Err:     err,
		}
	}
	return enc, nil
}

func NewTiktokenSplitter(tokensPerChunk int, chunkOverlap int, model string) (*TiktokenSplitter, error) {
	if err := validateWindow("new_tiktoken_splitter", tokensPerChunk, chunkOverlap); err != nil {
		return nil, err
	}

	encoding, err := encodingForModel("new_tiktoken_splitter", model)
	if err != nil {
		return nil, err
	}

	return &TiktokenSplitter{
		TokensPerChunk: tokensPerChunk,
		ChunkOverlap:   chunkOverlap,
		Model:          model,
		encoding:       encoding,
	}, nil
}

// CountTokens returns the number of tokens text encodes to
func (ts *TiktokenSplitter) CountTokens(text string) int {
	return len(ts.encoding.Encode(text, nil, nil))
}

func (ts *TiktokenSplitter) SplitText(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}

	tokens := ts.encoding.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := ts.TokensPerChunk - ts.ChunkOverlap
	chunks := make([]string, 0, len(tokens)/step+1)

	for start := 0; start < len(tokens); start += step {
		end := start + ts.TokensPerChunk
		if end > len(tokens) {
			end = len(tokens)
		}

		chunks = append(chunks, ts.encoding.Decode(tokens[start:end]))

		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}

func (ts *TiktokenSplitter) SplitDocuments(docs []Document) ([]Document, error) {
	return SplitDocuments(ts, docs)
}
