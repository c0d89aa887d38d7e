// Package notify carries the decision to notify a user out of the core.
// Delivery itself (email, push) belongs to whatever consumes the sink.
package notify

import (
	"context"
	"time"
)

// Kind names the template a notification is rendered with.
type Kind string

const (
	KindLoanRequested    Kind = "loan_requested"
	KindLoanApproved     Kind = "loan_approved"
	KindLoanDenied       Kind = "loan_denied"
	KindLoanCanceled     Kind = "loan_canceled"
	KindLoanCompleted    Kind = "loan_completed"
	KindLoanRescheduled  Kind = "loan_rescheduled"
	KindDueSoon          Kind = "loan_due_soon"
	KindDueTodayBorrower Kind = "loan_due_today_borrower"
	KindDueTodayOwner    Kind = "loan_due_today_owner"
	KindOverdueBorrower  Kind = "loan_overdue_borrower"
	KindOverdueOwner     Kind = "loan_overdue_owner"
	KindAccountDeleted   Kind = "account_deleted"
	KindJoinRequested    Kind = "circle_join_requested"
	KindJoinApproved     Kind = "circle_join_approved"
	KindJoinRejected     Kind = "circle_join_rejected"
)

// Recipient is the identity a notification is addressed to. It is captured at
// decision time, so a deleted user's confirmation still reaches the original
// address.
type Recipient struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Notification is one message to deliver.
type Notification struct {
	Recipient Recipient      `json:"recipient"`
	Kind      Kind           `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink accepts notifications for delivery.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}
