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

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with email %s: %w", email, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID, including soft-deleted users.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

// GetActiveByID retrieves a user by ID, treating soft-deleted users as absent.
func (r *GORMUserRepository) GetActiveByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted {
		return nil, apperrors.NotFound("user", id)
	}
	return user, nil
}

// Update saves every field of the user.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Save(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	return nil
}

// SoftDelete persists an anonymized user, but only if the row is not already
// deleted. A user deleted concurrently is reported as NotFound.
func (r *GORMUserRepository) SoftDelete(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_deleted = ?", user.ID, false).
		Updates(map[string]any{
			"email":             user.Email,
			"first_name":        user.FirstName,
			"last_name":         user.LastName,
			"about_me":          user.AboutMe,
			"profile_image_url": user.ProfileImageURL,
			"is_admin":          user.IsAdmin,
			"is_deleted":        true,
			"deleted_at":        user.DeletedAt,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to soft-delete user %s: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("user", user.ID)
	}
	return nil
}
