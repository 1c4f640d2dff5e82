package taskcore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/taskcore/internal/model"
	"github.com/taskflow/taskcore/internal/store"
)

const conversationTitleMaxLen = 80

// ConversationService holds the Store's conversation/message transcript,
// the state the Agent reads and appends to on every turn. Grounded on the
// teacher's UserService (thin struct over store.Store, one call per
// use case) rather than TaskCore's own richer orchestration, since
// conversations carry no validation or event-publication concerns.
type ConversationService struct {
	store store.Store
}

func NewConversationService(s store.Store) *ConversationService {
	return &ConversationService{store: s}
}

func (s *ConversationService) CreateConversation(ctx context.Context, ownerID string) (*model.Conversation, error) {
	now := time.Now().UTC()
	c := &model.Conversation{
		ConversationID: uuid.NewString(),
		OwnerID:        ownerID,
		CreationTime:   now,
		UpdateTime:     now,
	}
	return s.store.Conversations().Create(ctx, c)
}

func (s *ConversationService) GetConversation(ctx context.Context, ownerID, conversationID string) (*model.Conversation, error) {
	return s.store.Conversations().GetByID(ctx, ownerID, conversationID)
}

func (s *ConversationService) ListConversations(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	return s.store.Conversations().List(ctx, ownerID)
}

func (s *ConversationService) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	return s.store.Messages().List(ctx, conversationID)
}

func (s *ConversationService) AppendMessage(ctx context.Context, conversationID string, role model.MessageRole, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content must be non-empty: %w", model.ErrValidation)
	}
	return s.store.Messages().Append(ctx, &model.Message{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreationTime:   time.Now().UTC(),
	})
}

// TitleFromFirstMessage derives a conversation title from the first user
// message, truncated, per spec §4.6's "on the first assistant turn, if the
// conversation has no title, derive one from the first user message".
func TitleFromFirstMessage(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) <= conversationTitleMaxLen {
		return trimmed
	}
	return strings.TrimSpace(trimmed[:conversationTitleMaxLen]) + "..."
}

// SetTitleIfAbsent derives and sets a conversation title from firstMessage
// when the conversation does not already have one.
func (s *ConversationService) SetTitleIfAbsent(ctx context.Context, ownerID, conversationID, firstMessage string) error {
	c, err := s.store.Conversations().GetByID(ctx, ownerID, conversationID)
	if err != nil {
		return err
	}
	if c.Title != nil && *c.Title != "" {
		return nil
	}
	return s.store.Conversations().SetTitle(ctx, ownerID, conversationID, TitleFromFirstMessage(firstMessage))
}
