package repositories

import (
	"context"
	"fmt"

	"lendloop/internal/apperrors"
	"lendloop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMMessageRepository is a GORM implementation of MessageRepository.
type GORMMessageRepository struct {
	db *gorm.DB
}

// NewGORMMessageRepository creates a new instance of GORMMessageRepository.
func NewGORMMessageRepository(db *gorm.DB) *GORMMessageRepository {
	return &GORMMessageRepository{db: db}
}

// Create stores a new message.
func (r *GORMMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByLoanRequest returns the messages attached to a loan request, oldest first.
func (r *GORMMessageRepository) ListByLoanRequest(ctx context.Context, loanRequestID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.WithContext(ctx).Where("loan_request_id = ?", loanRequestID).Order("created_at").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages of loan request %s: %w", loanRequestID, err)
	}
	return msgs, nil
}

// CountUnread counts the recipient's unread messages.
func (r *GORMMessageRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

// MarkRead flags a message as read. Only its recipient may do so; any other
// caller sees NotFound.
func (r *GORMMessageRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark message %s read: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("message", id)
	}
	return nil
}

// DeleteByItem removes messages about the item or any of the given loan
// requests. Replies threaded under them are detached, not deleted.
func (r *GORMMessageRepository) DeleteByItem(ctx context.Context, itemID string, loanRequestIDs []string) error {
	db := r.db.WithContext(ctx)
	scope := db.Model(&models.Message{}).Where("item_id = ?", itemID)
	if len(loanRequestIDs) > 0 {
		scope = scope.Or("loan_request_id IN ?", loanRequestIDs)
	}

	var ids []string
	if err := scope.Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("failed to list messages of item %s: %w", itemID, err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := db.Model(&models.Message{}).Where("parent_id IN ?", ids).Update("parent_id", nil).Error; err != nil {
		return fmt.Errorf("failed to detach replies of item %s: %w", itemID, err)
	}
	if err := db.Where("id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
		return fmt.Errorf("failed to delete messages of item %s: %w", itemID, err)
	}
	return nil
}

// DeleteByCircle removes messages scoped to the circle.
func (r *GORMMessageRepository) DeleteByCircle(ctx context.Context, circleID string) error {
	if err := r.db.WithContext(ctx).Delete(&models.Message{}, "circle_id = ?", circleID).Error; err != nil {
		return fmt.Errorf("failed to delete messages of circle %s: %w", circleID, err)
	}
	return nil
}
