package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCircleRepository is a GORM implementation of CircleRepository.
type GORMCircleRepository struct {
	db *gorm.DB
}

// NewGORMCircleRepository creates a new instance of GORMCircleRepository.
func NewGORMCircleRepository(db *gorm.DB) *GORMCircleRepository {
	return &GORMCircleRepository{
		db: db,
	}
}

// Create creates a new circle in the database.
func (r *GORMCircleRepository) Create(ctx context.Context, circle *models.Circle) error {
	if circle.ID == "" {
		circle.ID = uuid.New().String()
	}
	if circle.Visibility == "" {
		circle.Visibility = models.VisibilityPublic
	}
	if err := r.db.WithContext(ctx).Create(circle).Error; err != nil {
		return fmt.Errorf("failed to create circle: %w", err)
	}
	return nil
}

// GetByID retrieves a circle by its ID.
func (r *GORMCircleRepository) GetByID(ctx context.Context, id string) (*models.Circle, error) {
	var circle models.Circle
	if err := r.db.WithContext(ctx).First(&circle, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "circle", id)
	}
	return &circle, nil
}

// Lock retrieves a circle and holds a row lock on it until the surrounding
// transaction ends, so membership and admin decisions on the circle serialize.
func (r *GORMCircleRepository) Lock(ctx context.Context, id string) (*models.Circle, error) {
	var circle models.Circle
	if err := forUpdate(r.db.WithContext(ctx)).First(&circle, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "circle", id)
	}
	return &circle, nil
}

// Delete removes the circle together with its memberships.
func (r *GORMCircleRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Delete(&models.CircleMember{}, "circle_id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete members of circle %s: %w", id, err)
	}
	res := db.Delete(&models.Circle{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete circle: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("circle", id)
	}
	return nil
}

// AddMember inserts a membership. JoinedAt defaults to now.
func (r *GORMCircleRepository) AddMember(ctx context.Context, member *models.CircleMember) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("failed to add user %s to circle %s: %w", member.UserID, member.CircleID, err)
	}
	return nil
}

// GetMember returns the membership of userID in circleID.
func (r *GORMCircleRepository) GetMember(ctx context.Context, circleID, userID string) (*models.CircleMember, error) {
	var m models.CircleMember
	err := r.db.WithContext(ctx).First(&m, "circle_id = ? AND user_id = ?", circleID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("membership of user %s in circle %s: %w", userID, circleID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// ListMembers returns the circle's memberships, earliest joined first.
func (r *GORMCircleRepository) ListMembers(ctx context.Context, circleID string) ([]models.CircleMember, error) {
	var members []models.CircleMember
	if err := r.db.WithContext(ctx).Where("circle_id = ?", circleID).Order("joined_at, user_id").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list members of circle %s: %w", circleID, err)
	}
	return members, nil
}

// ListMembershipsByUser returns every membership held by userID.
func (r *GORMCircleRepository) ListMembershipsByUser(ctx context.Context, userID string) ([]models.CircleMember, error) {
	var members []models.CircleMember
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("circle_id").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list memberships of user %s: %w", userID, err)
	}
	return members, nil
}

// SetAdmin sets or clears the admin flag of a membership.
func (r *GORMCircleRepository) SetAdmin(ctx context.Context, circleID, userID string, isAdmin bool) error {
	res := r.db.WithContext(ctx).Model(&models.CircleMember{}).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return fmt.Errorf("failed to update admin flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("membership of user %s in circle %s: %w", userID, circleID, apperrors.ErrNotFound)
	}
	return nil
}

// RemoveMember deletes a single membership.
func (r *GORMCircleRepository) RemoveMember(ctx context.Context, circleID, userID string) error {
	res := r.db.WithContext(ctx).Delete(&models.CircleMember{}, "circle_id = ? AND user_id = ?", circleID, userID)
	if res.Error != nil {
		return fmt.Errorf("failed to remove user %s from circle %s: %w", userID, circleID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("membership of user %s in circle %s: %w", userID, circleID, apperrors.ErrNotFound)
	}
	return nil
}

// RemoveAllMemberships deletes every membership of userID.
func (r *GORMCircleRepository) RemoveAllMemberships(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.CircleMember{}, "user_id = ?", userID)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to remove memberships of user %s: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

// CountAdmins counts the circle's memberships with the admin flag set.
func (r *GORMCircleRepository) CountAdmins(ctx context.Context, circleID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.CircleMember{}).Where("circle_id = ? AND is_admin = ?", circleID, true).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count admins of circle %s: %w", circleID, err)
	}
	return n, nil
}
