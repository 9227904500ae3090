package chathistory

import (
	"context"
	"slices"

	"github.com/Abraxas-365/coursekb/llm"
)

type Memory struct {
	repo Repository
	opts *Options
}

func New(repo Repository, opts ...Option) *Memory {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Memory{
		repo: repo,
		opts: options,
	}
}

// CreateConversation creates a new conversation with a generated id
func (m *Memory) CreateConversation(ctx context.Context, metadata map[string]any) (*Conversation, error) {
	return m.CreateConversationWithID(ctx, metadata, m.opts.GenerateID())
}

func (m *Memory) CreateConversationWithID(ctx context.Context, metadata map[string]any, id string) (*Conversation, error) {
	now := m.opts.Now()
	conv := Conversation{
		ID:        id,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// AddMessage stamps the message and appends it to the conversation
func (m *Memory) AddMessage(ctx context.Context, conversationID string, msg llm.Message) error {
	meta := make(map[string]interface{}, len(msg.Metadata)+1)
	for k, v := range msg.Metadata {
		meta[k] = v
	}
	if _, ok := meta[MetaTimestamp]; !ok {
		meta[MetaTimestamp] = m.opts.Now()
	}
	msg.Metadata = meta
	return m.repo.AddMessage(ctx, conversationID, msg)
}

// AddExchange records a question and its answer
func (m *Memory) AddExchange(ctx context.Context, conversationID, question, answer string) error {
	if err := m.AddMessage(ctx, conversationID, llm.Message{Role: llm.RoleUser, Content: question}); err != nil {
		return err
	}
	return m.AddMessage(ctx, conversationID, llm.Message{Role: llm.RoleAssistant, Content: answer})
}

// GetMessages retrieves messages from a specific conversation
func (m *Memory) GetMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		limit = m.opts.ReturnLimit
	}
	return m.repo.GetMessages(ctx, conversationID, limit)
}

// Transcript returns the recent messages without excluded roles, prefixed with the system prompt
func (m *Memory) Transcript(ctx context.Context, conversationID string) ([]llm.Message, error) {
	msgs, err := m.GetMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]llm.Message, 0, len(msgs)+1)
	if m.opts.SystemPrompt != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: m.opts.SystemPrompt})
	}
	for _, msg := range msgs {
		if slices.Contains(m.opts.ExcludeRoles, msg.Role) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// GetConversation retrieves a conversation by ID
func (m *Memory) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	return m.repo.GetConversation(ctx, conversationID)
}

// ListConversations retrieves all conversations with optional filters
func (m *Memory) ListConversations(ctx context.Context, filter Filter, limit, offset int) ([]Conversation, error) {
	return m.repo.ListConversations(ctx, filter, limit, offset)
}

// DeleteConversation deletes an entire conversation
func (m *Memory) DeleteConversation(ctx context.Context, conversationID string) error {
	return m.repo.DeleteConversation(ctx, conversationID)
}

// GetMessagesByFilter retrieves messages using filter from a specific conversation
func (m *Memory) GetMessagesByFilter(ctx context.Context, conversationID string, filter Filter) ([]llm.Message, error) {
	return m.repo.GetMessagesByFilter(ctx, conversationID, filter, m.opts.ReturnLimit)
}

// ClearHistory clears all messages from a specific conversation
func (m *Memory) ClearHistory(ctx context.Context, conversationID string) error {
	return m.repo.ClearHistory(ctx, conversationID)
}

func (m *Memory) GetMessageCount(ctx context.Context, conversationID string, filter Filter) (int, error) {
	return m.repo.GetMessageCount(ctx, conversationID, filter)
}
