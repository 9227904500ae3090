package llm

import "strings"

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Message represents a chat message
type Message struct {
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	Name     string                 `json:"name,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// GetUsage returns the usage statistics from the message metadata
func (m *Message) GetUsage() *Usage {
	if m.Metadata == nil {
		return nil
	}

	switch u := m.Metadata["usage"].(type) {
	case *Usage:
		return u
	case Usage:
		return &u
	case map[string]interface{}:
		// decoded from JSON the counters arrive as float64
		return &Usage{
			PromptTokens:     toInt(u["prompt_tokens"]),
			CompletionTokens: toInt(u["completion_tokens"]),
			TotalTokens:      toInt(u["total_tokens"]),
		}
	}

	return nil
}

// SetUsage sets the usage statistics in the message metadata
func (m *Message) SetUsage(usage *Usage) {
	if usage == nil {
		return
	}

	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}

	m.Metadata["usage"] = map[string]interface{}{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// MessagesToString renders the user/assistant turns as "role: content" lines
func MessagesToString(messages []Message) string {
	var sb strings.Builder
	for _, message := range messages {
		if message.Role == RoleSystem {
			continue
		}
		sb.WriteString(message.Role)
		sb.WriteString(": ")
		sb.WriteString(message.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
