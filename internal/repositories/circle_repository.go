package repositories

import (
	"context"

	"lendloop/internal/models"
)

// CircleRepository defines the interface for circle and membership data access.
type CircleRepository interface {
	Create(ctx context.Context, circle *models.Circle) error
	GetByID(ctx context.Context, id string) (*models.Circle, error)
	Lock(ctx context.Context, id string) (*models.Circle, error)
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, member *models.CircleMember) error
	GetMember(ctx context.Context, circleID, userID string) (*models.CircleMember, error)
	ListMembers(ctx context.Context, circleID string) ([]models.CircleMember, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]models.CircleMember, error)
	SetAdmin(ctx context.Context, circleID, userID string, isAdmin bool) error
	RemoveMember(ctx context.Context, circleID, userID string) error
	RemoveAllMemberships(ctx context.Context, userID string) (int64, error)
	CountAdmins(ctx context.Context, circleID string) (int64, error)
}
