package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/coursekb/chathistory"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

var _ chathistory.Repository = (*Repository)(nil)

// Open connects to Postgres through lib/pq
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewRepository(db)
}

func NewRepository(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Required database schema
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    metadata JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id SERIAL PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    name TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    metadata JSONB
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
`

func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// conditions accumulates WHERE clauses with numbered placeholders
type conditions struct {
	clauses []string
	params  []interface{}
}

func (c *conditions) add(format string, value interface{}) {
	c.params = append(c.params, value)
	c.clauses = append(c.clauses, fmt.Sprintf(format, len(c.params)))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.clauses, " AND ")
}

func (c *conditions) next() int {
	return len(c.params) + 1
}

func messageConditions(conversationID string, filter chathistory.Filter) *conditions {
	c := &conditions{}
	c.add("conversation_id = $%d", conversationID)
	if filter.StartTime != nil {
		c.add("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		c.add("created_at <= $%d", *filter.EndTime)
	}
	if len(filter.Roles) > 0 {
		c.add("role = ANY($%d)", pq.Array(filter.Roles))
	}
	if filter.Search != "" {
		c.add("content ILIKE $%d", "%"+filter.Search+"%")
	}
	return c
}

func (r *Repository) CreateConversation(ctx context.Context, conv chathistory.Conversation) error {
	metadata, err := json.Marshal(conv.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO conversations (id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, conv.ID, metadata, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chathistory.Exists(conv.ID)
	}
	return nil
}

func (r *Repository) GetConversation(ctx context.Context, conversationID string) (*chathistory.Conversation, error) {
	query := `
		SELECT id, metadata, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, conversationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chathistory.NotFound(conversationID)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *Repository) ListConversations(ctx context.Context, filter chathistory.Filter, limit, offset int) ([]chathistory.Conversation, error) {
	c := &conditions{}
	if filter.StartTime != nil {
		c.add("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		c.add("created_at <= $%d", *filter.EndTime)
	}
	if len(filter.Metadata) > 0 {
		meta, err := json.Marshal(filter.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata filter: %w", err)
		}
		c.add("metadata @> $%d::jsonb", meta)
	}
	if limit <= 0 {
		limit = 100
	}

	n := c.next()
	query := fmt.Sprintf(`
		SELECT id, metadata, created_at, updated_at
		FROM conversations
		%s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, c.where(), n, n+1)

	rows, err := r.db.QueryContext(ctx, query, append(c.params, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []chathistory.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}

	return conversations, rows.Err()
}

func (r *Repository) DeleteConversation(ctx context.Context, conversationID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chathistory.NotFound(conversationID)
	}
	return nil
}

func (r *Repository) AddMessage(ctx context.Context, conversationID string, message llm.Message) error {
	metadata, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	createdAt := time.Now()
	if ts, ok := message.Metadata[chathistory.MetaTimestamp].(time.Time); ok {
		createdAt = ts
	}

	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chathistory.NotFound(conversationID)
	}

	query := `
		INSERT INTO messages (conversation_id, role, content, name, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		conversationID,
		message.Role,
		message.Content,
		message.Name,
		createdAt,
		metadata,
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *Repository) GetMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error) {
	return r.GetMessagesByFilter(ctx, conversationID, chathistory.Filter{}, limit)
}

func (r *Repository) GetMessagesByFilter(ctx context.Context, conversationID string, filter chathistory.Filter, limit int) ([]llm.Message, error) {
	c := messageConditions(conversationID, filter)
	query := fmt.Sprintf(`
		SELECT role, content, name, metadata
		FROM messages
		%s
		ORDER BY created_at DESC, id DESC
	`, c.where())
	params := c.params
	if limit > 0 {
		query += fmt.Sprintf("LIMIT $%d", c.next())
		params = append(params, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []llm.Message
	for rows.Next() {
		var (
			msg          llm.Message
			name         sql.NullString
			metadataJSON []byte
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &name, &metadataJSON); err != nil {
			return nil, err
		}
		msg.Name = name.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
				return nil, err
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows come newest first
	for i := 0; i < len(messages)/2; i++ {
		j := len(messages) - i - 1
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *Repository) ClearHistory(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	return err
}

func (r *Repository) GetMessageCount(ctx context.Context, conversationID string, filter chathistory.Filter) (int, error) {
	c := messageConditions(conversationID, filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM messages %s`, c.where())

	var count int
	err := r.db.QueryRowContext(ctx, query, c.params...).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*chathistory.Conversation, error) {
	var (
		conv         chathistory.Conversation
		metadataJSON []byte
	)
	if err := s.Scan(&conv.ID, &metadataJSON, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &conv.Metadata); err != nil {
			return nil, err
		}
	}
	return &conv, nil
}
