package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/coursekb/chathistory"
	"github.com/Abraxas-365/coursekb/llm"
)

// Repository implements chathistory.Repository using in-memory storage
type Repository struct {
	conversations map[string]chathistory.Conversation
	mu            sync.RWMutex
}

var _ chathistory.Repository = (*Repository)(nil)

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		conversations: make(map[string]chathistory.Conversation),
	}
}

func (r *Repository) CreateConversation(_ context.Context, conv chathistory.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conv.ID]; exists {
		return chathistory.Exists(conv.ID)
	}

	conv.Messages = nil
	r.conversations[conv.ID] = conv
	return nil
}

func (r *Repository) GetConversation(_ context.Context, conversationID string) (*chathistory.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return nil, chathistory.NotFound(conversationID)
	}

	conv.Messages = nil
	return &conv, nil
}

func (r *Repository) ListConversations(_ context.Context, filter chathistory.Filter, limit, offset int) ([]chathistory.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conversations []chathistory.Conversation
	for _, conv := range r.conversations {
		if conversationMatches(conv, filter) {
			conv.Messages = nil
			conversations = append(conversations, conv)
		}
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	if offset >= len(conversations) {
		return []chathistory.Conversation{}, nil
	}

	end := len(conversations)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return conversations[offset:end], nil
}

func (r *Repository) DeleteConversation(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conversationID]; !exists {
		return chathistory.NotFound(conversationID)
	}

	delete(r.conversations, conversationID)
	return nil
}

func (r *Repository) AddMessage(_ context.Context, conversationID string, message llm.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return chathistory.NotFound(conversationID)
	}

	conv.Messages = append(conv.Messages, message)
	conv.UpdatedAt = time.Now()
	r.conversations[conversationID] = conv

	return nil
}

func (r *Repository) GetMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error) {
	return r.GetMessagesByFilter(ctx, conversationID, chathistory.Filter{}, limit)
}

func (r *Repository) GetMessagesByFilter(_ context.Context, conversationID string, filter chathistory.Filter, limit int) ([]llm.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return nil, chathistory.NotFound(conversationID)
	}

	var filtered []llm.Message
	for _, msg := range conv.Messages {
		if messageMatches(msg, filter) {
			filtered = append(filtered, msg)
		}
	}

	return lastN(filtered, limit), nil
}

func (r *Repository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return chathistory.NotFound(conversationID)
	}

	conv.Messages = nil
	conv.UpdatedAt = time.Now()
	r.conversations[conversationID] = conv

	return nil
}

func (r *Repository) GetMessageCount(_ context.Context, conversationID string, filter chathistory.Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[conversationID]
	if !exists {
		return 0, chathistory.NotFound(conversationID)
	}

	count := 0
	for _, msg := range conv.Messages {
		if messageMatches(msg, filter) {
			count++
		}
	}

	return count, nil
}

// lastN copies the trailing limit messages; limit <= 0 means all
func lastN(msgs []llm.Message, limit int) []llm.Message {
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]llm.Message, limit)
	copy(out, msgs[len(msgs)-limit:])
	return out
}

func messageMatches(msg llm.Message, filter chathistory.Filter) bool {
	if filter.StartTime != nil || filter.EndTime != nil {
		if ts, ok := msg.Metadata[chathistory.MetaTimestamp].(time.Time); ok {
			if filter.StartTime != nil && ts.Before(*filter.StartTime) {
				return false
			}
			if filter.EndTime != nil && ts.After(*filter.EndTime) {
				return false
			}
		}
	}

	if len(filter.Roles) > 0 {
		roleMatch := false
		for _, role := range filter.Roles {
			if msg.Role == role {
				roleMatch = true
				break
			}
		}
		if !roleMatch {
			return false
		}
	}

	if filter.Search != "" {
		if !strings.Contains(strings.ToLower(msg.Content), strings.ToLower(filter.Search)) {
			return false
		}
	}

	return true
}

func conversationMatches(conv chathistory.Conversation, filter chathistory.Filter) bool {
	if filter.StartTime != nil && conv.CreatedAt.Before(*filter.StartTime) {
		return false
	}

	if filter.EndTime != nil && conv.CreatedAt.After(*filter.EndTime) {
		return false
	}

	for k, v := range filter.Metadata {
		if convValue, exists := conv.Metadata[k]; !exists || convValue != v {
			return false
		}
	}

	return true
}
