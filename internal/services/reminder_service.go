package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lendloop/internal/clock"
	"lendloop/internal/metrics"
	"lendloop/internal/models"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"

	"go.uber.org/zap"
)

// MaxOverdueReminders caps how many overdue reminders one loan receives.
const MaxOverdueReminders = 4

// ReminderStats counts the loans reminded during one sweep, per trigger.
type ReminderStats struct {
	DueSoon  int `json:"due_soon"`
	DueToday int `json:"due_today"`
	Overdue  int `json:"overdue"`
	Failed   int `json:"failed"`
}

// Total returns the number of loans reminded.
func (r ReminderStats) Total() int {
	return r.DueSoon + r.DueToday + r.Overdue
}

// ReminderService sends due-soon, due-today and overdue reminders for approved
// loans. Each reminder is claimed in the database before it is sent, so
// overlapping or restarted sweeps never send the same reminder twice.
type ReminderService struct {
	store    repositories.Store
	notifier notify.Sink
	clock    clock.Clock
	log      *zap.Logger
}

// NewReminderService creates a new ReminderService.
func NewReminderService(store repositories.Store, notifier notify.Sink, clk clock.Clock, log *zap.Logger) *ReminderService {
	return &ReminderService{
		store:    store,
		notifier: notifier,
		clock:    clk,
		log:      log.Named("reminders"),
	}
}

// DueReminder reports which reminder, if any, req is owed today.
func DueReminder(req *models.LoanRequest, today time.Time) (repositories.ReminderKind, bool) {
	if req.Status != models.LoanApproved {
		return "", false
	}
	switch {
	case req.IsDueSoon(today):
		return repositories.ReminderDueSoon, req.DueSoonReminderSent == nil
	case req.IsDueToday(today):
		return repositories.ReminderDueToday, req.DueDateReminderSent == nil
	case req.IsOverdue(today):
		if req.OverdueReminderCount >= MaxOverdueReminders {
			return "", false
		}
		if req.LastOverdueReminderSent != nil && models.DaysBetween(*req.LastOverdueReminderSent, today) < 1 {
			return "", false
		}
		return repositories.ReminderOverdue, true
	}
	return "", false
}

// Sweep evaluates every approved loan against today's date and sends the
// reminders that are owed. A failure on one loan is logged and counted; the
// sweep carries on with the rest.
func (s *ReminderService) Sweep(ctx context.Context) (ReminderStats, error) {
	var stats ReminderStats
	today := clock.Today(s.clock)

	loans, err := s.store.Loans().ListByStatus(ctx, models.LoanApproved)
	if err != nil {
		metrics.RecordSweep(err)
		return stats, fmt.Errorf("failed to load approved loans: %w", err)
	}

	for i := range loans {
		if err := ctx.Err(); err != nil {
			metrics.RecordSweep(err)
			return stats, err
		}
		req := &loans[i]
		kind, due := DueReminder(req, today)
		if !due {
			continue
		}
		sent, err := s.remind(ctx, req, kind, today)
		if err != nil {
			stats.Failed++
			s.log.Error("failed to send reminder",
				zap.String("loan_request_id", req.ID),
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		if !sent {
			continue
		}
		metrics.RecordReminder(string(kind))
		switch kind {
		case repositories.ReminderDueSoon:
			stats.DueSoon++
		case repositories.ReminderDueToday:
			stats.DueToday++
		case repositories.ReminderOverdue:
			stats.Overdue++
		}
	}

	var sweepErr error
	if stats.Failed > 0 {
		sweepErr = errors.New("some reminders failed")
	}
	metrics.RecordSweep(sweepErr)
	s.log.Info("reminder sweep finished",
		zap.Int("due_soon", stats.DueSoon),
		zap.Int("due_today", stats.DueToday),
		zap.Int("overdue", stats.Overdue),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// remind claims the reminder marker and, if the claim wins, notifies the
// parties. It returns false when another sweep got there first.
func (s *ReminderService) remind(ctx context.Context, req *models.LoanRequest, kind repositories.ReminderKind, today time.Time) (bool, error) {
	var (
		claimed bool
		out     outbox
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		out.reset()
		var err error
		claimed, err = tx.Loans().ClaimReminder(ctx, req, kind, s.clock.Now())
		if err != nil || !claimed {
			return err
		}

		item, err := tx.Items().GetByID(ctx, req.ItemID)
		if err != nil {
			return err
		}
		borrower, err := s.party(ctx, tx, req.BorrowerID)
		if err != nil {
			return err
		}
		owner, err := s.party(ctx, tx, item.OwnerID)
		if err != nil {
			return err
		}

		payload := loanPayload(req, item)
		payload["days_until_due"] = req.DaysUntilDue(today)
		payload["days_overdue"] = req.DaysOverdue(today)
		if borrower != nil {
			payload["borrower_name"] = borrower.FullName()
		}
		if owner != nil {
			payload["owner_name"] = owner.FullName()
		}

		switch kind {
		case repositories.ReminderDueSoon:
			out.add(borrower, notify.KindDueSoon, payload)
		case repositories.ReminderDueToday:
			out.add(borrower, notify.KindDueTodayBorrower, payload)
			out.add(owner, notify.KindDueTodayOwner, payload)
		case repositories.ReminderOverdue:
			payload["reminder_number"] = req.OverdueReminderCount
			out.add(borrower, notify.KindOverdueBorrower, payload)
			out.add(owner, notify.KindOverdueOwner, payload)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	out.flush(ctx, s.notifier, s.log)
	return claimed, nil
}

func (s *ReminderService) party(ctx context.Context, tx repositories.Store, userID *string) (*models.User, error) {
	if userID == nil {
		return nil, nil
	}
	return tx.Users().GetByID(ctx, *userID)
}
