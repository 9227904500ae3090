package openai

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/Abraxas-365/coursekb/llm"
	"github.com/sashabaranov/go-openai"
)

// DefaultChatModel answers course questions
const DefaultChatModel = openai.GPT3Dot5Turbo

// ChatClient is the part of the go-openai client the LLM uses
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

type OpenAILLM struct {
	client   ChatClient
	model    string
	defaults llm.ChatOptions
}

var _ llm.LLM = (*OpenAILLM)(nil)

// NewOpenAILLM builds a chat model. A zero temperature is sent as the smallest
// positive float, because go-openai omits a literal 0 and the API would fall back to 1.
func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	return NewOpenAILLMWithClient(openai.NewClient(apiKey), model)
}

func NewOpenAILLMWithClient(client ChatClient, model string, defaults ...llm.Option) *OpenAILLM {
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAILLM{
		client:   client,
		model:    model,
		defaults: *llm.Apply(llm.ChatOptions{}, defaults...),
	}
}

func (o *OpenAILLM) request(messages []llm.Message, opts []llm.Option) openai.ChatCompletionRequest {
	options := llm.Apply(o.defaults, opts...)

	openAIMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openAIMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    msg.Name,
		}
	}

	temperature := options.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	return openai.ChatCompletionRequest{
		Model:            o.model,
		Messages:         openAIMessages,
		Temperature:      temperature,
		TopP:             options.TopP,
		MaxTokens:        options.MaxTokens,
		Stop:             options.Stop,
		PresencePenalty:  options.PresencePenalty,
		FrequencyPenalty: options.FrequencyPenalty,
	}
}

func (o *OpenAILLM) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Message, error) {
	if len(messages) == 0 {
		return nil, llm.NewLLMError("Chat", llm.ErrInvalidInput, "no messages", nil)
	}

	resp, err := o.client.CreateChatCompletion(ctx, o.request(messages, opts))
	if err != nil {
		return nil, handleOpenAIError("Chat", err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.NewLLMError("Chat", llm.ErrAPIError, "no response choices returned", nil)
	}

	message := &llm.Message{
		Role:    resp.Choices[0].Message.Role,
		Content: resp.Choices[0].Message.Content,
		Name:    resp.Choices[0].Message.Name,
	}
	message.SetUsage(&llm.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	})

	return message, nil
}

func (o *OpenAILLM) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (<-chan llm.StreamResponse, error) {
	req := o.request(messages, opts)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, handleOpenAIError("ChatStream", err)
	}

	responseChan := make(chan llm.StreamResponse)

	go func() {
		defer close(responseChan)
		defer stream.Close()

		send := func(r llm.StreamResponse) bool {
			select {
			case responseChan <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// the usage block arrives in a last chunk without choices
		var usage *llm.Usage
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				final := llm.Message{Role: llm.RoleAssistant}
				final.SetUsage(usage)
				send(llm.StreamResponse{Message: final, Done: true})
				return
			}
			if err != nil {
				send(llm.StreamResponse{Error: handleOpenAIError("ChatStream", err), Done: true})
				return
			}

			if response.Usage != nil {
				usage = &llm.Usage{
					PromptTokens:     response.Usage.PromptTokens,
					CompletionTokens: response.Usage.CompletionTokens,
					TotalTokens:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) == 0 {
				continue
			}

			if delta := response.Choices[0].Delta.Content; delta != "" {
				if !send(llm.StreamResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: delta}}) {
					return
				}
			}
		}
	}()

	return responseChan, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	resp, err := o.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func handleOpenAIError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llm.NewLLMError(op, llm.ErrContextCanceled, "request canceled", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 400:
			return llm.NewLLMError(op, llm.ErrInvalidInput, "invalid request", err)
		case 401:
			return llm.NewLLMError(op, llm.ErrUnauthorized, "invalid API key", err)
		case 429:
			return llm.NewLLMError(op, llm.ErrRateLimitExceeded, "rate limit exceeded", err)
		case 500:
			return llm.NewLLMError(op, llm.ErrModelNotAvailable, "OpenAI server error", err)
		}
	}

	return llm.NewLLMError(op, llm.ErrInternal, "unexpected error", err)
}
