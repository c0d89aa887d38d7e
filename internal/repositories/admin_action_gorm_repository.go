package repositories

import (
	"context"
	"fmt"

	"lendloop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMAdminActionRepository is a GORM implementation of AdminActionRepository.
type GORMAdminActionRepository struct {
	db *gorm.DB
}

// NewGORMAdminActionRepository creates a new instance of GORMAdminActionRepository.
func NewGORMAdminActionRepository(db *gorm.DB) *GORMAdminActionRepository {
	return &GORMAdminActionRepository{db: db}
}

// Create appends an entry to the audit log.
func (r *GORMAdminActionRepository) Create(ctx context.Context, action *models.AdminAction) error {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(action).Error; err != nil {
		return fmt.Errorf("failed to record admin action: %w", err)
	}
	return nil
}

// ListByTarget returns the actions taken against targetUserID, oldest first.
func (r *GORMAdminActionRepository) ListByTarget(ctx context.Context, targetUserID string) ([]models.AdminAction, error) {
	var actions []models.AdminAction
	if err := r.db.WithContext(ctx).Where("target_user_id = ?", targetUserID).Order("created_at").Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to list admin actions: %w", err)
	}
	return actions, nil
}
