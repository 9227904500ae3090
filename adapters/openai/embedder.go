package openai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Abraxas-365/coursekb/embedding"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// EmbeddingClient is the part of the go-openai client the embedder uses
type EmbeddingClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

type OpenAIEmbedder struct {
	client  EmbeddingClient
	options embedding.Options
	limiter *rate.Limiter
}

// DefaultOptions returns the default options for OpenAI embeddings
func DefaultOptions() embedding.Options {
	return embedding.Options{
		Model:     string(openai.AdaEmbeddingV2),
		BatchSize: 100,
		Normalize: true,
	}
}

// NewOpenAIEmbedder creates a new OpenAI embedder with the given API key and options
func NewOpenAIEmbedder(apiKey string, opts ...embedding.Option) *OpenAIEmbedder {
	return NewOpenAIEmbedderWithClient(openai.NewClient(apiKey), opts...)
}

// NewOpenAIEmbedderWithClient uses an existing client, such as one pointed at a proxy
func NewOpenAIEmbedderWithClient(client EmbeddingClient, opts ...embedding.Option) *OpenAIEmbedder {
	options := embedding.Apply(DefaultOptions(), opts...)
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultOptions().BatchSize
	}
	return &OpenAIEmbedder{
		client:  client,
		options: options,
		limiter: options.Limiter(),
	}
}

// EmbedDocuments implements the Embedder interface
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	if len(documents) == 0 {
		return nil, embedding.ErrEmptyInput("EmbedDocuments")
	}

	all := make([][]float32, 0, len(documents))
	for i, batch := range embedding.Batches(documents, e.options.BatchSize) {
		vectors, err := e.embed(ctx, "EmbedDocuments", batch)
		if err != nil {
			return nil, fmt.Errorf("error processing batch %d: %w", i, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// EmbedQuery implements the Embedder interface
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, embedding.ErrEmptyInput("EmbedQuery")
	}

	vectors, err := e.embed(ctx, "EmbedQuery", []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, op string, input []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, embedding.NewEmbeddingError(op, err, embedding.ErrCodeContextCanceled,
				"rate limiter wait aborted")
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(e.options.Model),
	})
	if err != nil {
		return nil, e.handleError(op, err)
	}

	if len(resp.Data) != len(input) {
		return nil, embedding.NewEmbeddingError(op, nil, embedding.ErrCodeAPIError,
			fmt.Sprintf("expected %d embeddings, got %d", len(input), len(resp.Data)))
	}

	vectors := make([][]float32, len(input))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, embedding.NewEmbeddingError(op, nil, embedding.ErrCodeAPIError,
				fmt.Sprintf("embedding index %d out of range", item.Index))
		}
		if e.options.Normalize {
			normalizeVector(item.Embedding)
		}
		vectors[item.Index] = item.Embedding
	}

	return vectors, nil
}

// handleError converts OpenAI API errors to embedding errors
func (e *OpenAIEmbedder) handleError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return embedding.NewEmbeddingError(op, err, embedding.ErrCodeContextCanceled, "request canceled")
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 400:
			return embedding.ErrInvalidInput(op, err, apiErr.Message)
		case 401:
			return embedding.ErrUnauthorized(op, err)
		case 429:
			return embedding.ErrRateLimitExceeded(op, err)
		case 500:
			return embedding.NewEmbeddingError(op, err, embedding.ErrCodeModelNotAvailable,
				"OpenAI API server error")
		default:
			return embedding.NewEmbeddingError(op, err, embedding.ErrCodeAPIError,
				fmt.Sprintf("OpenAI API error: %s", apiErr.Message))
		}
	}

	return embedding.NewEmbeddingError(op, err, embedding.ErrCodeInternal, "unexpected error")
}

// normalizeVector scales a vector to unit L2 length in place
func normalizeVector(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vector {
		vector[i] *= inv
	}
}
