package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finquery/finquery/internal/shared"
)

// Repository defines persistence for conversations and messages.
type Repository interface {
	CreateConversation(ctx context.Context, conv Conversation) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg Message) (*Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	DeleteIdleConversations(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateConversation inserts a conversation record.
func (r *PGRepository) CreateConversation(ctx context.Context, conv Conversation) (*Conversation, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.LastMessageAt.IsZero() {
		conv.LastMessageAt = now
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, title, created_at, last_message_at) VALUES ($1, $2, $3, $4, $5)`,
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.LastMessageAt)
	if err != nil {
		return nil, fmt.Errorf("chat: create conversation: %w", err)
	}
	return &conv, nil
}

// GetConversation fetches one conversation.
func (r *PGRepository) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at, last_message_at FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.LastMessageAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns the user's conversations, most recent
// activity first.
func (r *PGRepository) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, created_at, last_message_at FROM conversations
		 WHERE user_id = $1 ORDER BY last_message_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.LastMessageAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (r *PGRepository) DeleteConversation(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

// AppendMessage inserts a message and bumps the conversation's
// last-message timestamp.
func (r *PGRepository) AppendMessage(ctx context.Context, msg Message) (*Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	var results []byte
	if msg.Results != nil {
		encoded, err := json.Marshal(msg.Results)
		if err != nil {
			return nil, fmt.Errorf("chat: encode results: %w", err)
		}
		results = encoded
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, user_id, type, content, sql, result_count, results, execution_ms, error, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		msg.ID, msg.ConversationID, msg.UserID, string(msg.Type), msg.Content, msg.SQL,
		msg.ResultCount, results, msg.ExecutionMs, msg.Error, msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("chat: append message: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET last_message_at = $1 WHERE id = $2`, msg.Timestamp, msg.ConversationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns a conversation's messages in timestamp order.
func (r *PGRepository) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, user_id, type, content, sql, result_count, results, execution_ms, error, ts
		 FROM messages WHERE conversation_id = $1 ORDER BY ts ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []Message
	for rows.Next() {
		var msg Message
		var msgType string
		var results []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msgType, &msg.Content, &msg.SQL,
			&msg.ResultCount, &results, &msg.ExecutionMs, &msg.Error, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Type = MessageType(msgType)
		if len(results) > 0 {
			if err := json.Unmarshal(results, &msg.Results); err != nil {
				return nil, fmt.Errorf("chat: decode results: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteIdleConversations removes conversations with no activity since
// the cutoff, including their messages.
func (r *PGRepository) DeleteIdleConversations(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE last_message_at < $1)`, cutoff); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM conversations WHERE last_message_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
