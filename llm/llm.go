package llm

import (
	"context"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLM is the chat model that answers course questions. The openai and
// bedrock adapters implement it.
type LLM interface {
	// Chat returns the assistant reply to messages, with usage in its metadata when the provider reports it
	Chat(ctx context.Context, messages []Message, opts ...Option) (*Message, error)

	// ChatStream delivers the reply as deltas. The channel is closed after
	// a response with Done or Error set.
	ChatStream(ctx context.Context, messages []Message, opts ...Option) (<-chan StreamResponse, error)

	// Complete sends prompt as a single user message
	Complete(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// StreamResponse is one delta of a streamed reply
type StreamResponse struct {
	Message Message
	Error   error
	Done    bool
}

// Drain reads a stream until it ends, passing every delta to onToken when
// it is non-nil. It returns the text received so far together with the
// first stream error, and the usage carried by the final response.
func Drain(ch <-chan StreamResponse, onToken func(string)) (string, *Usage, error) {
	var (
		sb    strings.Builder
		usage *Usage
	)
	for resp := range ch {
		if resp.Error != nil {
			return sb.String(), usage, resp.Error
		}
		if resp.Message.Content != "" {
			sb.WriteString(resp.Message.Content)
			if onToken != nil {
				onToken(resp.Message.Content)
			}
		}
		if u := resp.Message.GetUsage(); u != nil {
			usage = u
		}
		if resp.Done {
			break
		}
	}
	return sb.String(), usage, nil
}

// WithPrompt appends prompt as the user turn after history without touching history's backing array
func WithPrompt(history []Message, prompt string) []Message {
	out := make([]Message, 0, len(history)+1)
	out = append(out, history...)
	return append(out, Message{Role: RoleUser, Content: prompt})
}
