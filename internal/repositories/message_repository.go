package repositories

import (
	"context"

	"lendloop/internal/models"
)

// MessageRepository defines the interface for message data access.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListByLoanRequest(ctx context.Context, loanRequestID string) ([]models.Message, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	DeleteByItem(ctx context.Context, itemID string, loanRequestIDs []string) error
	DeleteByCircle(ctx context.Context, circleID string) error
}
