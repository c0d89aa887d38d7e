package repositories

import (
	"context"

	"lendloop/internal/models"
)

// FeedbackRepository defines the interface for feedback data access.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *models.Feedback) error
	DeleteByReviewer(ctx context.Context, reviewerID string) (int64, error)
	DeleteByLoanRequests(ctx context.Context, loanRequestIDs []string) error
}
