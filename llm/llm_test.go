package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageUsage(t *testing.T) {
	var m Message
	assert.Nil(t, m.GetUsage())

	m.SetUsage(&Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	assert.Equal(t, &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, m.GetUsage())

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 15, decoded.GetUsage().TotalTokens)
}

func TestUsageAdd(t *testing.T) {
	u := &Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	u.Add(&Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
	u.Add(nil)
	assert.Equal(t, &Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}, u)
}

func TestMessagesToString(t *testing.T) {
	got := MessagesToString([]Message{
		{Role: RoleSystem, Content: "hidden"},
		{Role: RoleUser, Content: "What is dropout?"},
		{Role: RoleAssistant, Content: "A regularizer."},
	})
	assert.Equal(t, "user: What is dropout?\nassistant: A regularizer.\n", got)
}

func TestApply(t *testing.T) {
	o := Apply(ChatOptions{Temperature: 0.7, MaxTokens: 100}, WithTemperature(0), WithStop([]string{"\n"}))
	assert.Equal(t, float32(0), o.Temperature)
	assert.Equal(t, 100, o.MaxTokens)
	assert.Equal(t, []string{"\n"}, o.Stop)
}

func TestDrain(t *testing.T) {
	ch := make(chan StreamResponse, 4)
	ch <- StreamResponse{Message: Message{Content: "Drop"}}
	ch <- StreamResponse{Message: Message{Content: "out"}}
	final := Message{}
	final.SetUsage(&Usage{TotalTokens: 7})
	ch <- StreamResponse{Message: final, Done: true}
	close(ch)

	var seen []string
	text, usage, err := Drain(ch, func(tok string) { seen = append(seen, tok) })
	require.NoError(t, err)
	assert.Equal(t, "Dropout", text)
	assert.Equal(t, []string{"Drop", "out"}, seen)
	assert.Equal(t, 7, usage.TotalTokens)
}

func TestDrain_Error(t *testing.T) {
	boom := errors.New("stream reset")
	ch := make(chan StreamResponse, 2)
	ch <- StreamResponse{Message: Message{Content: "partial"}}
	ch <- StreamResponse{Error: boom}
	close(ch)

	text, _, err := Drain(ch, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", text)
}

func TestWithPrompt(t *testing.T) {
	history := make([]Message, 1, 4)
	history[0] = Message{Role: RoleUser, Content: "earlier"}

	got := WithPrompt(history, "Context: ...")
	require.Len(t, got, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "Context: ..."}, got[1])
	assert.Len(t, history, 1)
	assert.Empty(t, history[:2][1].Content)
}

func TestCodeOf(t *testing.T) {
	cause := errors.New("429 Too Many Requests")
	err := fmt.Errorf("answering: %w", NewLLMError("Chat", ErrRateLimitExceeded, "rate limited", cause))
	assert.Equal(t, ErrRateLimitExceeded, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "", CodeOf(cause))
	assert.Equal(t, "llm.Chat: rate limited: 429 Too Many Requests", errors.Unwrap(err).Error())
}
