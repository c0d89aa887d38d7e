package repositories

import (
	"context"

	"lendloop/internal/models"
)

// JoinRequestRepository defines the interface for circle join request data access.
type JoinRequestRepository interface {
	Create(ctx context.Context, req *models.CircleJoinRequest) error
	GetByID(ctx context.Context, id string) (*models.CircleJoinRequest, error)
	FindPending(ctx context.Context, circleID, userID string) (*models.CircleJoinRequest, error)
	UpdateStatus(ctx context.Context, req *models.CircleJoinRequest, to models.JoinRequestStatus) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteByCircle(ctx context.Context, circleID string) error
}
