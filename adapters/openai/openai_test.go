package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/coursekb/embedding"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbeddingClient struct {
	calls [][]string
	err   error
}

func (f *fakeEmbeddingClient) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	if f.err != nil {
		return openai.EmbeddingResponse{}, f.err
	}
	req := conv.Convert()
	input := req.Input.([]string)
	f.calls = append(f.calls, input)

	resp := openai.EmbeddingResponse{}
	// reversed order exercises index based placement
	for i := len(input) - 1; i >= 0; i-- {
		resp.Data = append(resp.Data, openai.Embedding{
			Index:     i,
			Embedding: []float32{float32(len(input[i])), 0, 0},
		})
	}
	return resp, nil
}

func TestOpenAIEmbedder_EmbedDocuments(t *testing.T) {
	client := &fakeEmbeddingClient{}
	e := NewOpenAIEmbedderWithClient(client, embedding.WithBatchSize(2), embedding.WithNormalization(false))

	vectors, err := e.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Equal(t, []float32{2, 0, 0}, vectors[1])
	assert.Equal(t, []float32{3, 0, 0}, vectors[2])
	assert.Len(t, client.calls, 2)

	_, err = e.EmbedDocuments(context.Background(), nil)
	var embErr *embedding.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, embedding.ErrCodeEmptyInput, embErr.Code)
}

func TestOpenAIEmbedder_EmbedQueryNormalizes(t *testing.T) {
	e := NewOpenAIEmbedderWithClient(&fakeEmbeddingClient{})

	v, err := e.EmbedQuery(context.Background(), "four")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v[0], 1e-6)

	_, err = e.EmbedQuery(context.Background(), "")
	assert.Error(t, err)
}

func TestOpenAIEmbedder_HandleError(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{400, embedding.ErrCodeInvalidInput},
		{401, embedding.ErrCodeUnauthorized},
		{429, embedding.ErrCodeRateLimitExceeded},
		{500, embedding.ErrCodeModelNotAvailable},
		{503, embedding.ErrCodeAPIError},
	}
	for _, tt := range tests {
		e := NewOpenAIEmbedderWithClient(&fakeEmbeddingClient{err: &openai.APIError{HTTPStatusCode: tt.status, Message: "x"}})
		_, err := e.EmbedQuery(context.Background(), "q")

		var embErr *embedding.EmbeddingError
		require.ErrorAs(t, err, &embErr)
		assert.Equal(t, tt.code, embErr.Code, "status %d", tt.status)
	}
}

func TestNormalizeVector(t *testing.T) {
	v := []float32{3, 4}
	normalizeVector(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	zero := []float32{0, 0}
	normalizeVector(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

type fakeChatClient struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeChatClient) CreateChatCompletionStream(context.Context, openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	return nil, errors.New("not supported")
}

func TestOpenAILLM_Chat(t *testing.T) {
	client := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "dropout rate"}}},
		Usage:   openai.Usage{PromptTokens: 7, CompletionTokens: 2, TotalTokens: 9},
	}}
	model := NewOpenAILLMWithClient(client, "")

	msg, err := model.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "dropout rate", msg.Content)
	assert.Equal(t, 9, msg.GetUsage().TotalTokens)
	assert.Equal(t, DefaultChatModel, client.req.Model)
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), client.req.Temperature)

	out, err := model.Complete(context.Background(), "hi", llm.WithTemperature(0.5))
	require.NoError(t, err)
	assert.Equal(t, "dropout rate", out)
	assert.Equal(t, float32(0.5), client.req.Temperature)
}

func TestOpenAILLM_ChatErrors(t *testing.T) {
	model := NewOpenAILLMWithClient(&fakeChatClient{}, "gpt-4")
	_, err := model.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	var llmErr *llm.LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrAPIError, llmErr.Code)

	model = NewOpenAILLMWithClient(&fakeChatClient{err: &openai.APIError{HTTPStatusCode: 429}}, "gpt-4")
	_, err = model.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrRateLimitExceeded, llmErr.Code)

	_, err = model.Chat(context.Background(), nil)
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidInput, llmErr.Code)
}

// chatServer records request bodies and answers /chat/completions, streaming when asked
func chatServer(t *testing.T, bodies *[]map[string]any) *OpenAILLM {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*bodies = append(*bodies, body)

		if body["stream"] != true {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],`+
				`"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"choices":[{"index":0,"delta":{"role":"assistant","content":"Gradient "}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"descent."},"finish_reason":"stop"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":42,"completion_tokens":3,"total_tokens":45}}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL
	return NewOpenAILLMWithClient(openai.NewClientWithConfig(cfg), "")
}

func TestOpenAILLM_SendsZeroTemperature(t *testing.T) {
	var bodies []map[string]any
	model := chatServer(t, &bodies)

	_, err := model.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "What is a ReLU?"}}, llm.WithTemperature(0))
	require.NoError(t, err)

	require.Len(t, bodies, 1)
	temp, ok := bodies[0]["temperature"]
	require.True(t, ok, "temperature must be present in %v", bodies[0])
	assert.InDelta(t, 0, temp, 1e-6)
}

func TestOpenAILLM_ChatStreamReportsUsage(t *testing.T) {
	var bodies []map[string]any
	model := chatServer(t, &bodies)

	stream, err := model.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "How are weights updated?"}})
	require.NoError(t, err)

	text, usage, err := llm.Drain(stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "Gradient descent.", text)
	require.NotNil(t, usage)
	assert.Equal(t, 45, usage.TotalTokens)

	require.Len(t, bodies, 1)
	assert.Equal(t, map[string]any{"include_usage": true}, bodies[0]["stream_options"])
	assert.Contains(t, bodies[0], "temperature")
}
