package models

import (
	"fmt"
	"strings"
	"time"
)

// DeletedEmailDomain is the domain used for anonymized addresses of deleted accounts.
const DeletedEmailDomain = "deleted.invalid"

// User represents a member of the lending platform.
type User struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Email           string     `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password        string     `json:"-" gorm:"type:varchar(255)" validate:"required,min=6"`
	FirstName       string     `json:"first_name" gorm:"type:varchar(50)" validate:"required,max=50"`
	LastName        string     `json:"last_name" gorm:"type:varchar(50)" validate:"required,max=50"`
	AboutMe         string     `json:"about_me" gorm:"type:text"`
	ProfileImageURL string     `json:"profile_image_url" gorm:"type:varchar(500)"`
	IsAdmin         bool       `json:"is_admin" gorm:"not null;default:false"`
	IsDeleted       bool       `json:"is_deleted" gorm:"not null;default:false;index"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FullName returns the display name of the user.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AnonymizedEmail returns the deterministic address a deleted account is rewritten to.
// It is unique per user id, which frees the original address for re-registration.
func AnonymizedEmail(userID string) string {
	return fmt.Sprintf("deleted_%s@%s", userID, DeletedEmailDomain)
}

// Anonymize marks the user as deleted and strips identifying fields.
func (u *User) Anonymize(now time.Time) {
	u.IsDeleted = true
	u.DeletedAt = &now
	u.Email = AnonymizedEmail(u.ID)
	u.FirstName = "Deleted"
	u.LastName = "User"
	u.AboutMe = ""
	u.ProfileImageURL = ""
	u.IsAdmin = false
}

// Actor identifies who is performing a state-changing operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}
