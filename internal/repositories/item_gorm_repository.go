package repositories

import (
	"context"
	"fmt"

	"lendloop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMItemRepository is a GORM implementation of ItemRepository.
type GORMItemRepository struct {
	db *gorm.DB
}

// NewGORMItemRepository creates a new instance of GORMItemRepository.
func NewGORMItemRepository(db *gorm.DB) *GORMItemRepository {
	return &GORMItemRepository{
		db: db,
	}
}

// Create creates a new item in the database.
func (r *GORMItemRepository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetByID retrieves a single item by its ID.
func (r *GORMItemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "item", id)
	}
	return &item, nil
}

// ListByOwner returns every item currently owned by ownerID.
func (r *GORMItemRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items for owner %s: %w", ownerID, err)
	}
	return items, nil
}

// Update saves the item's own columns. Tags are left alone.
func (r *GORMItemRepository) Update(ctx context.Context, item *models.Item) error {
	res := r.db.WithContext(ctx).Omit("Tags").Save(item)
	if res.Error != nil {
		return fmt.Errorf("failed to update item: %w", res.Error)
	}
	return nil
}

// Delete removes the item and its tag links. Loan requests and messages
// referencing the item must be removed by the caller first.
func (r *GORMItemRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	item := models.Item{ID: id}
	if err := db.Model(&item).Association("Tags").Clear(); err != nil {
		return fmt.Errorf("failed to clear tags of item %s: %w", id, err)
	}
	res := db.Delete(&models.Item{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "item", id)
	}
	return nil
}
