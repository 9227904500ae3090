package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/coursekb/chathistory"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Transcript(t *testing.T) {
	ctx := context.Background()
	mem := chathistory.New(NewRepository(),
		chathistory.WithReturnLimit(3),
		chathistory.WithSystemPrompt("course assistant"),
		chathistory.WithGenerateID(func() string { return "conv-1" }),
	)

	conv, err := mem.CreateConversation(ctx, map[string]any{"course": "deep_learning"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)

	require.NoError(t, mem.AddExchange(ctx, conv.ID, "What is a CNN?", "A convolutional network."))
	require.NoError(t, mem.AddExchange(ctx, conv.ID, "What is pooling?", "Downsampling."))

	msgs, err := mem.Transcript(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "A convolutional network.", msgs[1].Content)
	assert.Equal(t, "Downsampling.", msgs[3].Content)

	_, stamped := msgs[3].Metadata[chathistory.MetaTimestamp].(time.Time)
	assert.True(t, stamped)

	count, err := mem.GetMessageCount(ctx, conv.ID, chathistory.Filter{Roles: []string{llm.RoleUser}})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	err := repo.AddMessage(ctx, "missing", llm.Message{Role: llm.RoleUser})
	assert.True(t, errors.Is(err, chathistory.ErrConversationNotFound))

	require.NoError(t, repo.CreateConversation(ctx, chathistory.Conversation{ID: "a"}))
	err = repo.CreateConversation(ctx, chathistory.Conversation{ID: "a"})
	assert.True(t, errors.Is(err, chathistory.ErrConversationExists))

	require.NoError(t, repo.DeleteConversation(ctx, "a"))
	_, err = repo.GetConversation(ctx, "a")
	assert.True(t, errors.Is(err, chathistory.ErrConversationNotFound))
}

func TestRepository_FilterAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateConversation(ctx, chathistory.Conversation{ID: "old", CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, repo.CreateConversation(ctx, chathistory.Conversation{ID: "new", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)}))

	for i, content := range []string{"Gradient descent", "Learning rate", "gradient clipping"} {
		require.NoError(t, repo.AddMessage(ctx, "old", llm.Message{
			Role:     llm.RoleUser,
			Content:  content,
			Metadata: map[string]interface{}{chathistory.MetaTimestamp: base.Add(time.Duration(i) * time.Minute)},
		}))
	}

	msgs, err := repo.GetMessagesByFilter(ctx, "old", chathistory.Filter{Search: "gradient"}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "gradient clipping", msgs[1].Content)

	start := base.Add(30 * time.Second)
	msgs, err = repo.GetMessagesByFilter(ctx, "old", chathistory.Filter{StartTime: &start}, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "gradient clipping", msgs[0].Content)

	// AddMessage bumped "old" to the most recently updated
	convs, err := repo.ListConversations(ctx, chathistory.Filter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "old", convs[0].ID)

	convs, err = repo.ListConversations(ctx, chathistory.Filter{}, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, convs)

	require.NoError(t, repo.ClearHistory(ctx, "old"))
	msgs, err = repo.GetMessages(ctx, "old", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
