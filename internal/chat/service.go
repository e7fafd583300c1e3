package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrNotOwner indicates an access attempt on another user's
// conversation.
var ErrNotOwner = errors.New("chat: conversation belongs to another user")

// StoredResultCap bounds how many result rows a message stores.
const StoredResultCap = 100

// Service handles conversation business rules. All reads and deletes
// are owner-scoped.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// StartConversation creates a conversation titled from the first
// prompt.
func (s *Service) StartConversation(ctx context.Context, userID, firstPrompt string) (*Conversation, error) {
	return s.repo.CreateConversation(ctx, Conversation{
		UserID: userID,
		Title:  TitleFromPrompt(firstPrompt),
	})
}

// ListConversations returns the user's conversations.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

// DeleteConversation removes a conversation the user owns.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.UserID != userID {
		return ErrNotOwner
	}
	return s.repo.DeleteConversation(ctx, conversationID)
}

// Messages returns a conversation's messages if the user owns it.
func (s *Service) Messages(ctx context.Context, userID, conversationID string) ([]Message, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrNotOwner
	}
	return s.repo.ListMessages(ctx, conversationID)
}

// Append stores a message, capping stored result rows.
func (s *Service) Append(ctx context.Context, userID string, msg Message) (*Message, error) {
	conv, err := s.repo.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrNotOwner
	}
	msg.UserID = userID
	if len(msg.Results) > StoredResultCap {
		msg.Results = msg.Results[:StoredResultCap]
	}
	return s.repo.AppendMessage(ctx, msg)
}

// TitleFromPrompt derives a conversation title from the opening
// prompt.
func TitleFromPrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	if title == "" {
		return "New conversation"
	}
	const maxTitle = 60
	if utf8.RuneCountInString(title) > maxTitle {
		runes := []rune(title)
		title = strings.TrimSpace(string(runes[:maxTitle])) + "…"
	}
	return title
}

// PruneIdle removes conversations idle since before now-maxIdle.
func (s *Service) PruneIdle(ctx context.Context, maxIdle time.Duration) (int64, error) {
	return s.repo.DeleteIdleConversations(ctx, time.Now().UTC().Add(-maxIdle))
}
