package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/clock"
	"lendloop/internal/metrics"
	"lendloop/internal/models"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"

	"go.uber.org/zap"
)

// LoanService drives loan requests through their lifecycle. Every transition
// is validated against models.CanTransition and persisted with a
// compare-and-swap update, so concurrent callers cannot both win.
type LoanService struct {
	store    repositories.Store
	notifier notify.Sink
	clock    clock.Clock
	log      *zap.Logger
}

// NewLoanService creates a new LoanService.
func NewLoanService(store repositories.Store, notifier notify.Sink, clk clock.Clock, log *zap.Logger) *LoanService {
	return &LoanService{
		store:    store,
		notifier: notifier,
		clock:    clk,
		log:      log.Named("loans"),
	}
}

// Get returns a loan request visible to the actor: its borrower, the item's
// owner or a site admin.
func (s *LoanService) Get(ctx context.Context, actor models.Actor, requestID string) (*models.LoanRequest, error) {
	req, err := s.store.Loans().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	item, err := s.store.Items().GetByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !req.IsBorrowedBy(actor.UserID) && !item.IsOwnedBy(actor.UserID) {
		return nil, apperrors.Forbidden("not a party to this loan request")
	}
	return req, nil
}

// ItemAvailability reports whether the item can currently be lent.
func (s *LoanService) ItemAvailability(ctx context.Context, itemID string) (bool, error) {
	item, err := s.store.Items().GetByID(ctx, itemID)
	if err != nil {
		return false, err
	}
	approved, err := s.store.Loans().ListByItem(ctx, itemID, models.LoanApproved)
	if err != nil {
		return false, err
	}
	return item.IsAvailable(approved, clock.Today(s.clock)), nil
}

// Request creates a pending loan request for the item on behalf of the actor.
func (s *LoanService) Request(ctx context.Context, actor models.Actor, itemID string, start, end time.Time, note string) (*models.LoanRequest, error) {
	start, end = models.Date(start), models.Date(end)
	if start.After(end) {
		return nil, apperrors.Invalid("start date must not be after end date")
	}
	today := clock.Today(s.clock)
	if start.Before(today) {
		return nil, apperrors.Invalid("start date must not be in the past")
	}

	var (
		req *models.LoanRequest
		out outbox
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		out.reset()
		borrower, err := tx.Users().GetActiveByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		item, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.IsOrphaned() {
			return apperrors.NotFound("item", itemID)
		}
		if item.IsOwnedBy(actor.UserID) {
			return apperrors.Forbidden("cannot borrow your own item")
		}
		if !item.Available {
			return apperrors.Conflict("item is not offered for lending")
		}
		owner, err := tx.Users().GetActiveByID(ctx, *item.OwnerID)
		if err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, tx, item.ID, "", start, end, today); err != nil {
			return err
		}

		req = &models.LoanRequest{
			ItemID:     item.ID,
			BorrowerID: &borrower.ID,
			StartDate:  start,
			EndDate:    end,
			Status:     models.LoanPending,
		}
		if err := tx.Loans().Create(ctx, req); err != nil {
			return err
		}

		body := fmt.Sprintf("%s would like to borrow %s from %s to %s.",
			borrower.FullName(), item.Name, start.Format(dateLayout), end.Format(dateLayout))
		if note = strings.TrimSpace(note); note != "" {
			body += "\n\n" + note
		}
		if err := s.postMessage(ctx, tx, borrower.ID, owner.ID, item, req, body); err != nil {
			return err
		}
		out.add(owner, notify.KindLoanRequested, s.payload(req, item, borrower))
		return nil
	})
	metrics.RecordTransition(string(models.LoanPending), err)
	if err != nil {
		return nil, err
	}

	s.log.Info("loan requested",
		zap.String("loan_request_id", req.ID),
		zap.String("item_id", itemID),
		zap.String("borrower_id", actor.UserID))
	out.flush(ctx, s.notifier, s.log)
	return req, nil
}

// Approve accepts a pending request. Only the item's owner may approve, and
// the dates must not collide with another approved loan that has not ended.
func (s *LoanService) Approve(ctx context.Context, actor models.Actor, requestID string) (*models.LoanRequest, error) {
	return s.transition(ctx, actor, requestID, models.LoanApproved, func(lc *loanContext) error {
		if !lc.item.IsOwnedBy(actor.UserID) {
			return apperrors.Forbidden("only the item owner can approve a loan request")
		}
		return nil
	}, func(tx repositories.Store, lc *loanContext) error {
		return s.checkOverlap(ctx, tx, lc.item.ID, lc.req.ID, lc.req.StartDate, lc.req.EndDate, lc.today)
	})
}

// Deny rejects a pending request on behalf of the item's owner.
func (s *LoanService) Deny(ctx context.Context, actor models.Actor, requestID string) (*models.LoanRequest, error) {
	return s.transition(ctx, actor, requestID, models.LoanDenied, func(lc *loanContext) error {
		if !lc.item.IsOwnedBy(actor.UserID) {
			return apperrors.Forbidden("only the item owner can deny a loan request")
		}
		return nil
	}, nil)
}

// Cancel withdraws a pending request on behalf of its borrower.
func (s *LoanService) Cancel(ctx context.Context, actor models.Actor, requestID string) (*models.LoanRequest, error) {
	return s.transition(ctx, actor, requestID, models.LoanCanceled, func(lc *loanContext) error {
		if !lc.req.IsBorrowedBy(actor.UserID) {
			return apperrors.Forbidden("only the borrower can cancel a loan request")
		}
		return nil
	}, nil)
}

// MarkCompleted closes an approved loan once its end date has passed. Either
// party may close it.
func (s *LoanService) MarkCompleted(ctx context.Context, actor models.Actor, requestID string) (*models.LoanRequest, error) {
	return s.transition(ctx, actor, requestID, models.LoanCompleted, func(lc *loanContext) error {
		if !lc.req.IsBorrowedBy(actor.UserID) && !lc.item.IsOwnedBy(actor.UserID) {
			return apperrors.Forbidden("only the borrower or owner can complete a loan")
		}
		return nil
	}, func(_ repositories.Store, lc *loanContext) error {
		if !lc.req.IsOverdue(lc.today) {
			return apperrors.Invalid(fmt.Sprintf("loan ends on %s and cannot be completed before then",
				lc.req.EndDate.Format(dateLayout)))
		}
		return nil
	})
}

// Extend moves the end date of an approved loan. Only the owner may do so.
// All reminder markers are reset so the new schedule is reminded afresh.
func (s *LoanService) Extend(ctx context.Context, actor models.Actor, requestID string, newEnd time.Time, note string) (*models.LoanRequest, error) {
	newEnd = models.Date(newEnd)
	today := clock.Today(s.clock)

	var (
		req *models.LoanRequest
		out outbox
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		out.reset()
		owner, err := tx.Users().GetActiveByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		req, err = tx.Loans().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		item, err := tx.Items().GetByID(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if !item.IsOwnedBy(owner.ID) {
			return apperrors.Forbidden("only the item owner can change the loan end date")
		}
		if req.Status != models.LoanApproved {
			return apperrors.Invalid(fmt.Sprintf("only approved loans can be rescheduled, this one is %s", req.Status))
		}
		if newEnd.Before(req.StartDate) {
			return apperrors.Invalid("end date must not be before the start date")
		}
		if newEnd.Before(today) {
			return apperrors.Invalid("end date must not be in the past")
		}
		if err := s.checkOverlap(ctx, tx, item.ID, req.ID, req.StartDate, newEnd, today); err != nil {
			return err
		}

		extended := newEnd.After(req.EndDate)
		req.EndDate = newEnd
		req.ResetReminders()
		if err := tx.Loans().UpdateSchedule(ctx, req); err != nil {
			return err
		}

		verb := "updated"
		if extended {
			verb = "extended"
		}
		body := fmt.Sprintf("The loan of %s has been %s. New end date: %s.", item.Name, verb, newEnd.Format(dateLayout))
		if note = strings.TrimSpace(note); note != "" {
			body += "\n\n" + note
		}
		if req.BorrowerID == nil {
			return nil
		}
		borrower, err := tx.Users().GetActiveByID(ctx, *req.BorrowerID)
		if err != nil {
			return err
		}
		if err := s.postMessage(ctx, tx, owner.ID, borrower.ID, item, req, body); err != nil {
			return err
		}
		payload := s.payload(req, item, owner)
		payload["extended"] = extended
		out.add(borrower, notify.KindLoanRescheduled, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan rescheduled",
		zap.String("loan_request_id", req.ID),
		zap.Time("end_date", req.EndDate))
	out.flush(ctx, s.notifier, s.log)
	return req, nil
}

// Resolve forces a pending request to canceled or denied inside the caller's
// transaction, without actor checks or notifications. Account deletion uses
// it so that cascaded resolutions obey the same transition table.
func (s *LoanService) Resolve(ctx context.Context, tx repositories.Store, req *models.LoanRequest, to models.LoanStatus) error {
	if (to != models.LoanCanceled && to != models.LoanDenied) || !models.CanTransition(req.Status, to) {
		return apperrors.NewTransitionError(req.Status, to)
	}
	err := tx.Loans().UpdateStatus(ctx, req, to)
	metrics.RecordTransition(string(to), err)
	return err
}

type loanContext struct {
	req   *models.LoanRequest
	item  *models.Item
	today time.Time
}

// transition loads the request and its item and applies the state change
// atomically. Checks run in a fixed order: authorize, then the transition
// table, then the action's own preconditions in validate (may be nil). The
// counterpart gets an in-app message in the same transaction and a
// notification after commit.
func (s *LoanService) transition(ctx context.Context, actor models.Actor, requestID string, to models.LoanStatus,
	authorize func(lc *loanContext) error,
	validate func(tx repositories.Store, lc *loanContext) error) (*models.LoanRequest, error) {
	var (
		lc  loanContext
		out outbox
	)
	lc.today = clock.Today(s.clock)

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		out.reset()
		actorUser, err := tx.Users().GetActiveByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if lc.req, err = tx.Loans().GetByID(ctx, requestID); err != nil {
			return err
		}
		if lc.item, err = tx.Items().GetByID(ctx, lc.req.ItemID); err != nil {
			return err
		}
		if err := authorize(&lc); err != nil {
			return err
		}
		if !models.CanTransition(lc.req.Status, to) {
			return apperrors.NewTransitionError(lc.req.Status, to)
		}
		if validate != nil {
			if err := validate(tx, &lc); err != nil {
				return err
			}
		}
		if err := tx.Loans().UpdateStatus(ctx, lc.req, to); err != nil {
			return err
		}

		counterpart, err := s.counterpart(ctx, tx, actorUser.ID, lc.req, lc.item)
		if err != nil || counterpart == nil {
			return err
		}
		body := fmt.Sprintf("%s has %s the loan request for %s (%s to %s).",
			actorUser.FullName(), pastTense(to), lc.item.Name,
			lc.req.StartDate.Format(dateLayout), lc.req.EndDate.Format(dateLayout))
		if err := s.postMessage(ctx, tx, actorUser.ID, counterpart.ID, lc.item, lc.req, body); err != nil {
			return err
		}
		out.add(counterpart, transitionKind(to), s.payload(lc.req, lc.item, actorUser))
		return nil
	})
	metrics.RecordTransition(string(to), err)
	if err != nil {
		return nil, err
	}

	s.log.Info("loan request transitioned",
		zap.String("loan_request_id", lc.req.ID),
		zap.String("status", string(to)),
		zap.String("actor_id", actor.UserID))
	out.flush(ctx, s.notifier, s.log)
	return lc.req, nil
}

// checkOverlap rejects [start, end] if it collides with another approved loan
// on the item that has not yet ended.
func (s *LoanService) checkOverlap(ctx context.Context, tx repositories.Store, itemID, exceptID string, start, end, today time.Time) error {
	approved, err := tx.Loans().ListByItem(ctx, itemID, models.LoanApproved)
	if err != nil {
		return err
	}
	for i := range approved {
		other := &approved[i]
		if other.ID == exceptID || !other.IsActive(today) {
			continue
		}
		if other.Overlaps(start, end) {
			return apperrors.Conflict(fmt.Sprintf("dates overlap an approved loan from %s to %s",
				other.StartDate.Format(dateLayout), other.EndDate.Format(dateLayout)))
		}
	}
	return nil
}

// counterpart returns the other party of the request relative to actorID, or
// nil when that party no longer exists.
func (s *LoanService) counterpart(ctx context.Context, tx repositories.Store, actorID string, req *models.LoanRequest, item *models.Item) (*models.User, error) {
	var otherID *string
	if req.IsBorrowedBy(actorID) {
		otherID = item.OwnerID
	} else {
		otherID = req.BorrowerID
	}
	if otherID == nil {
		return nil, nil
	}
	user, err := tx.Users().GetByID(ctx, *otherID)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted {
		return nil, nil
	}
	return user, nil
}

func (s *LoanService) postMessage(ctx context.Context, tx repositories.Store, senderID, recipientID string, item *models.Item, req *models.LoanRequest, body string) error {
	return tx.Messages().Create(ctx, &models.Message{
		SenderID:      senderID,
		RecipientID:   recipientID,
		ItemID:        &item.ID,
		LoanRequestID: &req.ID,
		Body:          body,
	})
}

func (s *LoanService) payload(req *models.LoanRequest, item *models.Item, actor *models.User) map[string]any {
	p := loanPayload(req, item)
	p["actor_name"] = actor.FullName()
	return p
}

func pastTense(s models.LoanStatus) string {
	switch s {
	case models.LoanApproved:
		return "approved"
	case models.LoanDenied:
		return "denied"
	case models.LoanCanceled:
		return "canceled"
	case models.LoanCompleted:
		return "completed"
	}
	return string(s)
}

func transitionKind(s models.LoanStatus) notify.Kind {
	switch s {
	case models.LoanApproved:
		return notify.KindLoanApproved
	case models.LoanDenied:
		return notify.KindLoanDenied
	case models.LoanCanceled:
		return notify.KindLoanCanceled
	case models.LoanCompleted:
		return notify.KindLoanCompleted
	}
	return notify.KindLoanRequested
}
