package chathistory_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/coursekb/adapters/inmemory"
	"github.com/Abraxas-365/coursekb/chathistory"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ClockAndTranscript(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	mem := chathistory.New(inmemory.NewRepository(),
		chathistory.WithClock(func() time.Time { return at }),
		chathistory.WithGenerateID(func() string { return "week1" }),
		chathistory.WithSystemPrompt("You tutor a deep learning course."),
		chathistory.WithExcludeRoles(llm.RoleSystem),
	)

	conv, err := mem.CreateConversation(ctx, map[string]any{"course": "dl"})
	require.NoError(t, err)
	assert.Equal(t, "week1", conv.ID)
	assert.Equal(t, at, conv.CreatedAt)

	require.NoError(t, mem.AddMessage(ctx, conv.ID, llm.Message{Role: llm.RoleSystem, Content: "stale instructions"}))
	require.NoError(t, mem.AddExchange(ctx, conv.ID, "What is a perceptron?", "A linear classifier."))

	transcript, err := mem.Transcript(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "You tutor a deep learning course."}, transcript[0])
	assert.Equal(t, "What is a perceptron?", transcript[1].Content)
	assert.Equal(t, at, transcript[2].Metadata[chathistory.MetaTimestamp])
}

func TestMemory_MissingConversation(t *testing.T) {
	mem := chathistory.New(inmemory.NewRepository())
	_, err := mem.Transcript(context.Background(), "nope")
	assert.ErrorIs(t, err, chathistory.ErrConversationNotFound)
}
