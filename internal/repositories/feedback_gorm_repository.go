package repositories

import (
	"context"
	"fmt"

	"lendloop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMFeedbackRepository is a GORM implementation of FeedbackRepository.
type GORMFeedbackRepository struct {
	db *gorm.DB
}

// NewGORMFeedbackRepository creates a new instance of GORMFeedbackRepository.
func NewGORMFeedbackRepository(db *gorm.DB) *GORMFeedbackRepository {
	return &GORMFeedbackRepository{db: db}
}

// Create stores a new feedback entry.
func (r *GORMFeedbackRepository) Create(ctx context.Context, fb *models.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// DeleteByReviewer removes all feedback written by reviewerID.
func (r *GORMFeedbackRepository) DeleteByReviewer(ctx context.Context, reviewerID string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Feedback{}, "reviewer_id = ?", reviewerID)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete feedback of user %s: %w", reviewerID, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByLoanRequests removes feedback attached to any of the given requests.
func (r *GORMFeedbackRepository) DeleteByLoanRequests(ctx context.Context, loanRequestIDs []string) error {
	if len(loanRequestIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("loan_request_id IN ?", loanRequestIDs).Delete(&models.Feedback{}).Error; err != nil {
		return fmt.Errorf("failed to delete feedback of loan requests: %w", err)
	}
	return nil
}
