package repositories

import (
	"context"

	"lendloop/internal/models"
)

// ItemRepository defines the interface for item data access.
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id string) (*models.Item, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id string) error
}
