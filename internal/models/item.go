package models

import "time"

// Category classifies items. Every item belongs to exactly one category.
type Category struct {
	ID   string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name string `json:"name" gorm:"uniqueIndex;type:varchar(50)" validate:"required,max=50"`
}

// Tag is a free-form label attached to items.
type Tag struct {
	ID   string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name string `json:"name" gorm:"uniqueIndex;type:varchar(50)"`
}

// Item is something a user lists for lending.
//
// OwnerID is nil for orphaned items: the owner deleted their account while the
// item was out on an active loan.
type Item struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string    `json:"name" gorm:"type:varchar(100)" validate:"required,min=1,max=100"`
	Description string    `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`
	CategoryID  string    `json:"category_id" gorm:"type:varchar(36);not null;index" validate:"required"`
	OwnerID     *string   `json:"owner_id" gorm:"type:varchar(36);index"`
	Available   bool      `json:"available" gorm:"not null;default:true"`
	ImageURL    string    `json:"image_url" gorm:"type:varchar(500)"`
	Tags        []Tag     `json:"tags,omitempty" gorm:"many2many:item_tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsOrphaned reports whether the item has lost its owner.
func (i *Item) IsOrphaned() bool {
	return i.OwnerID == nil
}

// IsOwnedBy reports whether userID currently owns the item.
func (i *Item) IsOwnedBy(userID string) bool {
	return i.OwnerID != nil && *i.OwnerID == userID
}

// IsAvailable derives availability from the owner's listing flag and the
// item's approved loans, rather than trusting a separately mutated flag.
func (i *Item) IsAvailable(loans []LoanRequest, today time.Time) bool {
	if !i.Available || i.IsOrphaned() {
		return false
	}
	for idx := range loans {
		if loans[idx].ItemID == i.ID && loans[idx].IsActive(today) {
			return false
		}
	}
	return true
}
