package repositories

import (
	"context"

	"lendloop/internal/models"
)

// AdminActionRepository defines the interface for the admin audit log.
type AdminActionRepository interface {
	Create(ctx context.Context, action *models.AdminAction) error
	ListByTarget(ctx context.Context, targetUserID string) ([]models.AdminAction, error)
}
