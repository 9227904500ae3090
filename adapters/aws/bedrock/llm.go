package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Abraxas-365/coursekb/llm"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/ptr"
)

// LLMModelID represents available Bedrock models
type LLMModelID string

const (
	Claude3Haiku  LLMModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	Claude3Sonnet LLMModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	Claude35      LLMModelID = "anthropic.claude-3-5-sonnet-20240620-v1:0"
)

const anthropicVersion = "bedrock-2023-05-31"

// Client is the part of bedrockruntime.Client the adapter calls
type Client interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

type BedrockLLM struct {
	client Client
	model  LLMModelID
}

var _ llm.LLM = (*BedrockLLM)(nil)

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature"`
	TopP             float32            `json:"top_p,omitempty"`
	StopSequences    []string           `json:"stop_sequences,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage,omitempty"`
}

func NewBedrockLLM(client Client, model LLMModelID) *BedrockLLM {
	if model == "" {
		model = Claude3Haiku
	}
	return &BedrockLLM{
		client: client,
		model:  model,
	}
}

// buildRequest folds system messages into the top level system prompt; the messages
// API only accepts user and assistant turns.
func (b *BedrockLLM) buildRequest(op string, messages []llm.Message, opts []llm.Option) ([]byte, error) {
	options := llm.Apply(llm.ChatOptions{MaxTokens: 2000}, opts...)
	if options.MaxTokens <= 0 {
		options.MaxTokens = 2000
	}

	var system []string
	turns := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, anthropicMessage{
			Role:    msg.Role,
			Content: []contentBlock{{Type: "text", Text: msg.Content}},
		})
	}
	if len(turns) == 0 {
		return nil, llm.NewLLMError(op, llm.ErrInvalidInput, "no user messages", nil)
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		System:           strings.Join(system, "\n\n"),
		Messages:         turns,
		MaxTokens:        options.MaxTokens,
		Temperature:      options.Temperature,
		TopP:             options.TopP,
		StopSequences:    options.Stop,
	})
	if err != nil {
		return nil, llm.NewLLMError(op, llm.ErrInternal, "failed to marshal request", err)
	}
	return body, nil
}

func (b *BedrockLLM) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Message, error) {
	body, err := b.buildRequest("Chat", messages, opts)
	if err != nil {
		return nil, err
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     ptr.String(string(b.model)),
		Body:        body,
		ContentType: ptr.String("application/json"),
		Accept:      ptr.String("application/json"),
	})
	if err != nil {
		return nil, handleBedrockError("Chat", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, llm.NewLLMError("Chat", llm.ErrAPIError, "failed to unmarshal response", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	msg := &llm.Message{Role: llm.RoleAssistant, Content: sb.String()}
	msg.SetUsage(&llm.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	})
	return msg, nil
}

func (b *BedrockLLM) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (<-chan llm.StreamResponse, error) {
	body, err := b.buildRequest("ChatStream", messages, opts)
	if err != nil {
		return nil, err
	}

	output, err := b.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     ptr.String(string(b.model)),
		Body:        body,
		ContentType: ptr.String("application/json"),
		Accept:      ptr.String("application/json"),
	})
	if err != nil {
		return nil, handleBedrockError("ChatStream", err)
	}

	responseChan := make(chan llm.StreamResponse)

	go func() {
		defer close(responseChan)

		stream := output.GetStream()
		defer stream.Close()

		usage := &llm.Usage{}
		send := func(r llm.StreamResponse) bool {
			select {
			case responseChan <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var ev streamEvent
			if err := json.Unmarshal(chunk.Value.Bytes, &ev); err != nil {
				send(llm.StreamResponse{
					Error: llm.NewLLMError("ChatStream", llm.ErrAPIError, "failed to unmarshal chunk", err),
					Done:  true,
				})
				return
			}

			if ev.Usage != nil {
				usage.PromptTokens += ev.Usage.InputTokens
				usage.CompletionTokens += ev.Usage.OutputTokens
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}

			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Text == "" {
					continue
				}
				if !send(llm.StreamResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: ev.Delta.Text}}) {
					return
				}
			case "message_stop":
				final := llm.Message{Role: llm.RoleAssistant}
				final.SetUsage(usage)
				send(llm.StreamResponse{Message: final, Done: true})
				return
			}
		}

		if err := stream.Err(); err != nil {
			send(llm.StreamResponse{Error: handleBedrockError("ChatStream", err), Done: true})
			return
		}
		send(llm.StreamResponse{Message: llm.Message{Role: llm.RoleAssistant}, Done: true})
	}()

	return responseChan, nil
}

func (b *BedrockLLM) Complete(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	resp, err := b.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func handleBedrockError(op string, err error) error {
	var throttled *types.ThrottlingException
	var denied *types.AccessDeniedException
	var invalid *types.ValidationException
	switch {
	case errors.As(err, &throttled):
		return llm.NewLLMError(op, llm.ErrRateLimitExceeded, "Bedrock throttled the request", err)
	case errors.As(err, &denied):
		return llm.NewLLMError(op, llm.ErrUnauthorized, "Bedrock access denied", err)
	case errors.As(err, &invalid):
		return llm.NewLLMError(op, llm.ErrInvalidInput, "Bedrock rejected the request", err)
	}
	return llm.NewLLMError(op, llm.ErrAPIError, "Bedrock API error", err)
}
