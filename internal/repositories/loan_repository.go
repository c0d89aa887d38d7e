package repositories

import (
	"context"
	"time"

	"lendloop/internal/models"
)

// ReminderKind identifies which reminder marker a claim sets.
type ReminderKind string

const (
	ReminderDueSoon  ReminderKind = "due_soon"
	ReminderDueToday ReminderKind = "due_today"
	ReminderOverdue  ReminderKind = "overdue"
)

// LoanRequestRepository defines the interface for loan request data access.
type LoanRequestRepository interface {
	Create(ctx context.Context, req *models.LoanRequest) error
	GetByID(ctx context.Context, id string) (*models.LoanRequest, error)
	ListByItem(ctx context.Context, itemID string, statuses ...models.LoanStatus) ([]models.LoanRequest, error)
	ListByStatus(ctx context.Context, status models.LoanStatus) ([]models.LoanRequest, error)
	ListPendingByBorrower(ctx context.Context, borrowerID string) ([]models.LoanRequest, error)
	ListPendingForOwner(ctx context.Context, ownerID string) ([]models.LoanRequest, error)
	UpdateStatus(ctx context.Context, req *models.LoanRequest, to models.LoanStatus) error
	UpdateSchedule(ctx context.Context, req *models.LoanRequest) error
	ClaimReminder(ctx context.Context, req *models.LoanRequest, kind ReminderKind, now time.Time) (bool, error)
	DeleteByItem(ctx context.Context, itemID string) ([]string, error)
}
