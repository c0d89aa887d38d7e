package repositories

import (
	"context"
	"fmt"

	"lendloop/internal/apperrors"
	"lendloop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMJoinRequestRepository is a GORM implementation of JoinRequestRepository.
type GORMJoinRequestRepository struct {
	db *gorm.DB
}

// NewGORMJoinRequestRepository creates a new instance of GORMJoinRequestRepository.
func NewGORMJoinRequestRepository(db *gorm.DB) *GORMJoinRequestRepository {
	return &GORMJoinRequestRepository{db: db}
}

// Create stores a new join request.
func (r *GORMJoinRequestRepository) Create(ctx context.Context, req *models.CircleJoinRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = models.JoinRequestPending
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create join request: %w", err)
	}
	return nil
}

// GetByID retrieves a join request by its ID.
func (r *GORMJoinRequestRepository) GetByID(ctx context.Context, id string) (*models.CircleJoinRequest, error) {
	var req models.CircleJoinRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "join request", id)
	}
	return &req, nil
}

// FindPending returns the user's pending request to join the circle, or nil.
func (r *GORMJoinRequestRepository) FindPending(ctx context.Context, circleID, userID string) (*models.CircleJoinRequest, error) {
	var reqs []models.CircleJoinRequest
	err := r.db.WithContext(ctx).
		Where("circle_id = ? AND user_id = ? AND status = ?", circleID, userID, models.JoinRequestPending).
		Limit(1).Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending join request: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

// UpdateStatus moves a pending join request to its final status.
func (r *GORMJoinRequestRepository) UpdateStatus(ctx context.Context, req *models.CircleJoinRequest, to models.JoinRequestStatus) error {
	res := r.db.WithContext(ctx).Model(&models.CircleJoinRequest{}).
		Where("id = ? AND status = ?", req.ID, models.JoinRequestPending).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update join request %s: %w", req.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict(fmt.Sprintf("join request %s is no longer pending", req.ID))
	}
	req.Status = to
	return nil
}

// DeleteByUser removes every join request made by userID.
func (r *GORMJoinRequestRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.CircleJoinRequest{}, "user_id = ?", userID)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete join requests of user %s: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByCircle removes every join request to the circle.
func (r *GORMJoinRequestRepository) DeleteByCircle(ctx context.Context, circleID string) error {
	if err := r.db.WithContext(ctx).Delete(&models.CircleJoinRequest{}, "circle_id = ?", circleID).Error; err != nil {
		return fmt.Errorf("failed to delete join requests of circle %s: %w", circleID, err)
	}
	return nil
}
