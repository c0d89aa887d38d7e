package models

import "time"

// Visibility controls who can discover a circle.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

// Circle is a trust group whose members can see each other's items.
type Circle struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name             string     `json:"name" gorm:"uniqueIndex;type:varchar(100)" validate:"required,max=100"`
	Description      string     `json:"description" gorm:"type:text"`
	Visibility       Visibility `json:"visibility" gorm:"type:varchar(20);not null;default:'public'" validate:"omitempty,oneof=public private unlisted"`
	RequiresApproval bool       `json:"requires_approval" gorm:"not null;default:false"`
	ImageURL         string     `json:"image_url" gorm:"type:varchar(500)"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CircleMember is a user's membership in a circle.
type CircleMember struct {
	CircleID string    `json:"circle_id" gorm:"primaryKey;type:varchar(36)"`
	UserID   string    `json:"user_id" gorm:"primaryKey;type:varchar(36);index"`
	IsAdmin  bool      `json:"is_admin" gorm:"not null;default:false"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`
}

// JoinRequestStatus is the state of a CircleJoinRequest.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// CircleJoinRequest is a petition to join a circle that requires approval.
type CircleJoinRequest struct {
	ID        string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CircleID  string            `json:"circle_id" gorm:"type:varchar(36);not null;index"`
	UserID    string            `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Message   string            `json:"message" gorm:"type:text"`
	Status    JoinRequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
