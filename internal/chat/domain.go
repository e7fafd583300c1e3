package chat

import "time"

// Conversation groups the messages of one query session.
type Conversation struct {
	ID            string
	UserID        string
	Title         string
	CreatedAt     time.Time
	LastMessageAt time.Time
}

// MessageType distinguishes user prompts from assistant replies.
type MessageType string

// Message types.
const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
)

// Message is one entry in a conversation. Assistant messages may carry
// the generated SQL and a capped copy of the result rows.
type Message struct {
	ID             string
	ConversationID string
	UserID         string
	Type           MessageType
	Content        string
	SQL            string
	ResultCount    int
	Results        []map[string]any
	ExecutionMs    int64
	Error          string
	Timestamp      time.Time
}
