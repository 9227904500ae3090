package chathistory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abraxas-365/coursekb/llm"
)

// Conversation represents a chat conversation
type Conversation struct {
	ID        string         `json:"id"`
	Messages  []llm.Message  `json:"messages"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Filter represents query filters for chat history
type Filter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Roles     []string
	Search    string
	Metadata  map[string]any
}

func (f Filter) IsEmpty() bool {
	return f.StartTime == nil &&
		f.EndTime == nil &&
		len(f.Roles) == 0 &&
		f.Search == "" &&
		len(f.Metadata) == 0
}

// MetaTimestamp is the message metadata key holding the time it was recorded
const MetaTimestamp = "timestamp"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
)

// NotFound wraps ErrConversationNotFound with the conversation id
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
}

// Exists wraps ErrConversationExists with the conversation id
func Exists(id string) error {
	return fmt.Errorf("%w: %s", ErrConversationExists, id)
}

// Repository defines the persistence operations for chat history
type Repository interface {
	// CreateConversation creates a new conversation
	CreateConversation(ctx context.Context, conv Conversation) error

	// GetConversation retrieves a conversation by ID, without its messages
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)

	// ListConversations retrieves conversations, most recently updated first
	ListConversations(ctx context.Context, filter Filter, limit, offset int) ([]Conversation, error)

	// DeleteConversation deletes an entire conversation
	DeleteConversation(ctx context.Context, conversationID string) error

	// AddMessage appends a message to a conversation
	AddMessage(ctx context.Context, conversationID string, message llm.Message) error

	// GetMessages returns the last limit messages in chronological order
	GetMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error)

	// GetMessagesByFilter returns the last limit messages matching the filter
	GetMessagesByFilter(ctx context.Context, conversationID string, filter Filter, limit int) ([]llm.Message, error)

	// ClearHistory deletes all messages from a conversation
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of messages matching the filter
	GetMessageCount(ctx context.Context, conversationID string, filter Filter) (int, error)
}
