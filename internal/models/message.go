package models

import "time"

// Message is a directed note between two users. Lifecycle notifications are
// messages tied to the loan request they describe.
type Message struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SenderID      string    `json:"sender_id" gorm:"type:varchar(36);not null;index"`
	RecipientID   string    `json:"recipient_id" gorm:"type:varchar(36);not null;index"`
	ItemID        *string   `json:"item_id,omitempty" gorm:"type:varchar(36);index"`
	LoanRequestID *string   `json:"loan_request_id,omitempty" gorm:"type:varchar(36);index"`
	CircleID      *string   `json:"circle_id,omitempty" gorm:"type:varchar(36);index"`
	ParentID      *string   `json:"parent_id,omitempty" gorm:"type:varchar(36);index"`
	Body          string    `json:"body" gorm:"type:text;not null" validate:"required,max=5000"`
	IsRead        bool      `json:"is_read" gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"created_at"`
}

// FeedbackRating is the reviewer's verdict on a completed loan.
type FeedbackRating string

const (
	RatingGood    FeedbackRating = "good"
	RatingNeutral FeedbackRating = "neutral"
	RatingBad     FeedbackRating = "bad"
)

// Feedback is a review left on a completed loan.
type Feedback struct {
	ID            string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	LoanRequestID string         `json:"loan_request_id" gorm:"type:varchar(36);not null;index"`
	ReviewerID    string         `json:"reviewer_id" gorm:"type:varchar(36);not null;index"`
	Rating        FeedbackRating `json:"rating" gorm:"type:varchar(10);not null" validate:"required,oneof=good neutral bad"`
	Comment       string         `json:"comment" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
}

// AdminAction records a site administrator acting on another account.
type AdminAction struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ActionType   string    `json:"action_type" gorm:"type:varchar(20);not null"`
	AdminUserID  string    `json:"admin_user_id" gorm:"type:varchar(36);not null;index"`
	TargetUserID string    `json:"target_user_id" gorm:"type:varchar(36);not null;index"`
	Details      string    `json:"details" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

// All returns every model, in migration order.
func All() []any {
	return []any{
		&User{}, &Category{}, &Tag{}, &Item{}, &Circle{}, &CircleMember{},
		&CircleJoinRequest{}, &LoanRequest{}, &Message{}, &Feedback{}, &AdminAction{},
	}
}
