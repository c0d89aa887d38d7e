package repositories

import (
	"context"
	"fmt"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMLoanRequestRepository is a GORM implementation of LoanRequestRepository.
type GORMLoanRequestRepository struct {
	db *gorm.DB
}

// NewGORMLoanRequestRepository creates a new instance of GORMLoanRequestRepository.
func NewGORMLoanRequestRepository(db *gorm.DB) *GORMLoanRequestRepository {
	return &GORMLoanRequestRepository{
		db: db,
	}
}

// Create creates a new loan request in the database.
func (r *GORMLoanRequestRepository) Create(ctx context.Context, req *models.LoanRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create loan request: %w", err)
	}
	return nil
}

// GetByID retrieves a single loan request by its ID.
func (r *GORMLoanRequestRepository) GetByID(ctx context.Context, id string) (*models.LoanRequest, error) {
	var req models.LoanRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "loan request", id)
	}
	return &req, nil
}

// ListByItem returns the item's requests, optionally restricted to statuses.
func (r *GORMLoanRequestRepository) ListByItem(ctx context.Context, itemID string, statuses ...models.LoanStatus) ([]models.LoanRequest, error) {
	q := r.db.WithContext(ctx).Where("item_id = ?", itemID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var reqs []models.LoanRequest
	if err := q.Order("start_date").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list loan requests for item %s: %w", itemID, err)
	}
	return reqs, nil
}

// ListByStatus returns every request in the given status.
func (r *GORMLoanRequestRepository) ListByStatus(ctx context.Context, status models.LoanStatus) ([]models.LoanRequest, error) {
	var reqs []models.LoanRequest
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("end_date, id").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s loan requests: %w", status, err)
	}
	return reqs, nil
}

// ListPendingByBorrower returns the pending requests made by borrowerID.
func (r *GORMLoanRequestRepository) ListPendingByBorrower(ctx context.Context, borrowerID string) ([]models.LoanRequest, error) {
	var reqs []models.LoanRequest
	err := r.db.WithContext(ctx).
		Where("borrower_id = ? AND status = ?", borrowerID, models.LoanPending).
		Order("created_at").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests of borrower %s: %w", borrowerID, err)
	}
	return reqs, nil
}

// ListPendingForOwner returns the pending requests targeting items owned by ownerID.
func (r *GORMLoanRequestRepository) ListPendingForOwner(ctx context.Context, ownerID string) ([]models.LoanRequest, error) {
	var reqs []models.LoanRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND item_id IN (?)", models.LoanPending,
			r.db.Model(&models.Item{}).Select("id").Where("owner_id = ?", ownerID)).
		Order("created_at").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests for owner %s: %w", ownerID, err)
	}
	return reqs, nil
}

// UpdateStatus moves req to the target status if nobody else changed it since
// it was read. A lost race surfaces as a Conflict; on success req reflects the
// new status and version.
func (r *GORMLoanRequestRepository) UpdateStatus(ctx context.Context, req *models.LoanRequest, to models.LoanStatus) error {
	res := r.db.WithContext(ctx).Model(&models.LoanRequest{}).
		Where("id = ? AND status = ? AND version = ?", req.ID, req.Status, req.Version).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update status of loan request %s: %w", req.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict(fmt.Sprintf("loan request %s was modified concurrently", req.ID))
	}
	req.Status = to
	req.Version++
	return nil
}

// UpdateSchedule saves the request's dates and reminder markers, guarded by version.
func (r *GORMLoanRequestRepository) UpdateSchedule(ctx context.Context, req *models.LoanRequest) error {
	res := r.db.WithContext(ctx).Model(&models.LoanRequest{}).
		Where("id = ? AND status = ? AND version = ?", req.ID, req.Status, req.Version).
		Updates(map[string]any{
			"start_date":                 req.StartDate,
			"end_date":                   req.EndDate,
			"due_soon_reminder_sent":     req.DueSoonReminderSent,
			"due_date_reminder_sent":     req.DueDateReminderSent,
			"last_overdue_reminder_sent": req.LastOverdueReminderSent,
			"overdue_reminder_count":     req.OverdueReminderCount,
			"version":                    gorm.Expr("version + 1"),
			"updated_at":                 time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update schedule of loan request %s: %w", req.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict(fmt.Sprintf("loan request %s was modified concurrently", req.ID))
	}
	req.Version++
	return nil
}

// ClaimReminder atomically records that a reminder of the given kind is being
// sent for req. It returns false when another sweep already claimed it or the
// request changed since it was read, in which case nothing must be sent.
func (r *GORMLoanRequestRepository) ClaimReminder(ctx context.Context, req *models.LoanRequest, kind ReminderKind, now time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.LoanRequest{}).
		Where("id = ? AND status = ? AND version = ?", req.ID, models.LoanApproved, req.Version)

	var updates map[string]any
	switch kind {
	case ReminderDueSoon:
		q = q.Where("due_soon_reminder_sent IS NULL")
		updates = map[string]any{"due_soon_reminder_sent": now}
	case ReminderDueToday:
		q = q.Where("due_date_reminder_sent IS NULL")
		updates = map[string]any{"due_date_reminder_sent": now}
	case ReminderOverdue:
		q = q.Where("overdue_reminder_count = ?", req.OverdueReminderCount)
		updates = map[string]any{
			"last_overdue_reminder_sent": now,
			"overdue_reminder_count":     gorm.Expr("overdue_reminder_count + 1"),
		}
	default:
		return false, fmt.Errorf("unknown reminder kind %q", kind)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim %s reminder for loan request %s: %w", kind, req.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	switch kind {
	case ReminderDueSoon:
		req.DueSoonReminderSent = &now
	case ReminderDueToday:
		req.DueDateReminderSent = &now
	case ReminderOverdue:
		req.LastOverdueReminderSent = &now
		req.OverdueReminderCount++
	}
	return true, nil
}

// DeleteByItem removes every request on the item and returns their IDs.
func (r *GORMLoanRequestRepository) DeleteByItem(ctx context.Context, itemID string) ([]string, error) {
	db := r.db.WithContext(ctx)
	var ids []string
	if err := db.Model(&models.LoanRequest{}).Where("item_id = ?", itemID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list loan requests of item %s: %w", itemID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := db.Where("id IN ?", ids).Delete(&models.LoanRequest{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete loan requests of item %s: %w", itemID, err)
	}
	return ids, nil
}
