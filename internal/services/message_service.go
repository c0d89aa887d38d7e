package services

import (
	"context"

	"lendloop/internal/models"
	"lendloop/internal/repositories"
)

// MessageService exposes the in-app inbox state that loan and circle events
// leave behind.
type MessageService struct {
	store repositories.Store
}

// NewMessageService creates a new MessageService.
func NewMessageService(store repositories.Store) *MessageService {
	return &MessageService{store: store}
}

// UnreadCount returns how many messages addressed to the actor are unread.
func (s *MessageService) UnreadCount(ctx context.Context, actor models.Actor) (int64, error) {
	return s.store.Messages().CountUnread(ctx, actor.UserID)
}

// MarkRead marks one of the actor's messages as read.
func (s *MessageService) MarkRead(ctx context.Context, actor models.Actor, messageID string) error {
	return s.store.Messages().MarkRead(ctx, messageID, actor.UserID)
}
