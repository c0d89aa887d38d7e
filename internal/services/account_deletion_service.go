package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/clock"
	"lendloop/internal/media"
	"lendloop/internal/metrics"
	"lendloop/internal/models"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"

	"go.uber.org/zap"
)

// Cascade step names, reported in CascadeError.Step.
const (
	StepLoadAccount         = "load account"
	StepRecordAdminAction   = "record admin action"
	StepResolveRequests     = "resolve pending requests"
	StepTransferAuthority   = "transfer circle authority"
	StepRemoveMemberships   = "remove memberships"
	StepDeleteContributions = "delete join requests and feedback"
	StepDisposeItems        = "dispose items"
	StepAnonymize           = "anonymize account"
)

// AdminActionDeleteUser is the AdminAction type written for admin deletions.
const AdminActionDeleteUser = "delete_user"

// DeletionReport summarizes what a successful account deletion changed.
type DeletionReport struct {
	UserID              string   `json:"user_id"`
	CanceledRequests    int      `json:"canceled_requests"`
	DeniedRequests      int      `json:"denied_requests"`
	PromotedSuccessors  int      `json:"promoted_successors"`
	MembershipsRemoved  int64    `json:"memberships_removed"`
	JoinRequestsDeleted int64    `json:"join_requests_deleted"`
	FeedbackDeleted     int64    `json:"feedback_deleted"`
	ItemsOrphaned       int      `json:"items_orphaned"`
	ItemsDeleted        int      `json:"items_deleted"`
	MediaHandles        []string `json:"media_handles"`
	ByAdmin             bool     `json:"by_admin"`
}

// AccountDeletionService removes a user account and everything hanging off
// it in one atomic cascade.
type AccountDeletionService struct {
	store    repositories.Store
	loans    *LoanService
	circles  *CircleService
	media    media.Store
	notifier notify.Sink
	clock    clock.Clock
	log      *zap.Logger
}

// NewAccountDeletionService creates a new AccountDeletionService.
func NewAccountDeletionService(store repositories.Store, loans *LoanService, circles *CircleService,
	mediaStore media.Store, notifier notify.Sink, clk clock.Clock, log *zap.Logger) *AccountDeletionService {
	return &AccountDeletionService{
		store:    store,
		loans:    loans,
		circles:  circles,
		media:    mediaStore,
		notifier: notifier,
		clock:    clk,
		log:      log.Named("account_deletion"),
	}
}

// DeleteAccount deletes userID on behalf of actor, who must be the user
// themself or a site admin. Steps run in order inside one transaction; any
// failure rolls back all of them and is reported as a CascadeError naming the
// step. Media cleanup and notifications happen after commit and never fail
// the deletion.
func (s *AccountDeletionService) DeleteAccount(ctx context.Context, actor models.Actor, userID string) (*DeletionReport, error) {
	started := time.Now()
	today := clock.Today(s.clock)
	now := s.clock.Now()
	log := s.log.With(zap.String("user_id", userID), zap.String("actor_id", actor.UserID))

	var (
		report   DeletionReport
		identity notify.Recipient
		out      outbox
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		report = DeletionReport{UserID: userID}
		out.reset()

		user, err := s.authorize(ctx, tx, actor, userID)
		if err != nil {
			return err
		}
		identity = recipientOf(user)
		report.ByAdmin = actor.UserID != userID

		if report.ByAdmin {
			if err := step(StepRecordAdminAction, func() error {
				return s.recordAdminAction(ctx, tx, actor.UserID, user)
			}); err != nil {
				return err
			}
		}
		if err := step(StepResolveRequests, func() error {
			return s.resolveRequests(ctx, tx, userID, &report, &out)
		}); err != nil {
			return err
		}
		if err := step(StepTransferAuthority, func() error {
			return s.transferAuthority(ctx, tx, userID, &report)
		}); err != nil {
			return err
		}
		if err := step(StepRemoveMemberships, func() error {
			n, err := tx.Circles().RemoveAllMemberships(ctx, userID)
			report.MembershipsRemoved = n
			return err
		}); err != nil {
			return err
		}
		if err := step(StepDeleteContributions, func() error {
			var err error
			if report.JoinRequestsDeleted, err = tx.JoinRequests().DeleteByUser(ctx, userID); err != nil {
				return err
			}
			report.FeedbackDeleted, err = tx.Feedback().DeleteByReviewer(ctx, userID)
			return err
		}); err != nil {
			return err
		}
		if err := step(StepDisposeItems, func() error {
			return s.disposeItems(ctx, tx, userID, today, &report)
		}); err != nil {
			return err
		}

		if user.ProfileImageURL != "" {
			report.MediaHandles = append(report.MediaHandles, user.ProfileImageURL)
		}
		return step(StepAnonymize, func() error {
			user.Anonymize(now)
			return tx.Users().SoftDelete(ctx, user)
		})
	})
	metrics.RecordDeletion(started, err)
	if err != nil {
		log.Warn("account deletion failed", zap.Error(err))
		return nil, err
	}

	log.Info("account deleted",
		zap.Bool("by_admin", report.ByAdmin),
		zap.Int("canceled_requests", report.CanceledRequests),
		zap.Int("denied_requests", report.DeniedRequests),
		zap.Int("promoted_successors", report.PromotedSuccessors),
		zap.Int("items_orphaned", report.ItemsOrphaned),
		zap.Int("items_deleted", report.ItemsDeleted))

	s.deleteMedia(ctx, log, report.MediaHandles)
	out.pending = append(out.pending, notify.Notification{
		Recipient: identity,
		Kind:      notify.KindAccountDeleted,
		Payload:   map[string]any{"by_admin": report.ByAdmin},
		CreatedAt: now,
	})
	out.flush(ctx, s.notifier, log)
	return &report, nil
}

// step runs fn and tags any failure with the step name.
func step(name string, fn func() error) error {
	if err := fn(); err != nil {
		return &apperrors.CascadeError{Step: name, Err: err}
	}
	return nil
}

// authorize loads the target account and checks the actor may delete it.
// An absent or already deleted account is NotFound.
func (s *AccountDeletionService) authorize(ctx context.Context, tx repositories.Store, actor models.Actor, userID string) (*models.User, error) {
	if actor.UserID != userID {
		admin, err := tx.Users().GetActiveByID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Forbidden("actor is not an active user")
			}
			return nil, &apperrors.CascadeError{Step: StepLoadAccount, Err: err}
		}
		if !admin.IsAdmin {
			return nil, apperrors.Forbidden("only site admins can delete other accounts")
		}
	}
	user, err := tx.Users().GetActiveByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, &apperrors.CascadeError{Step: StepLoadAccount, Err: err}
	}
	return user, nil
}

func (s *AccountDeletionService) recordAdminAction(ctx context.Context, tx repositories.Store, adminID string, target *models.User) error {
	details, err := json.Marshal(map[string]any{
		"email": target.Email,
		"name":  target.FullName(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode admin action details: %w", err)
	}
	return tx.AdminActions().Create(ctx, &models.AdminAction{
		ActionType:   AdminActionDeleteUser,
		AdminUserID:  adminID,
		TargetUserID: target.ID,
		Details:      string(details),
	})
}

// resolveRequests cancels the user's own pending requests and denies pending
// requests on the user's items. Borrowers whose requests were denied are
// notified after commit.
func (s *AccountDeletionService) resolveRequests(ctx context.Context, tx repositories.Store, userID string, report *DeletionReport, out *outbox) error {
	borrowed, err := tx.Loans().ListPendingByBorrower(ctx, userID)
	if err != nil {
		return err
	}
	for i := range borrowed {
		if err := s.loans.Resolve(ctx, tx, &borrowed[i], models.LoanCanceled); err != nil {
			return err
		}
		report.CanceledRequests++
	}

	owned, err := tx.Loans().ListPendingForOwner(ctx, userID)
	if err != nil {
		return err
	}
	for i := range owned {
		req := &owned[i]
		if err := s.loans.Resolve(ctx, tx, req, models.LoanDenied); err != nil {
			return err
		}
		report.DeniedRequests++
		if req.BorrowerID == nil {
			continue
		}
		borrower, err := tx.Users().GetByID(ctx, *req.BorrowerID)
		if err != nil {
			return err
		}
		item, err := tx.Items().GetByID(ctx, req.ItemID)
		if err != nil {
			return err
		}
		payload := loanPayload(req, item)
		payload["reason"] = "owner account deleted"
		out.add(borrower, notify.KindLoanDenied, payload)
	}
	return nil
}

// transferAuthority hands admin rights on to a successor in every circle
// where the user is the only admin.
func (s *AccountDeletionService) transferAuthority(ctx context.Context, tx repositories.Store, userID string, report *DeletionReport) error {
	memberships, err := tx.Circles().ListMembershipsByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if !m.IsAdmin {
			continue
		}
		successor, err := s.circles.TransferAuthority(ctx, tx, m.CircleID, userID)
		if err != nil {
			return err
		}
		if successor != nil {
			report.PromotedSuccessors++
		}
	}
	return nil
}

// disposeItems orphans items that are out on an active loan so the borrower
// keeps the record, and deletes every other item with its requests, their
// feedback and messages, and its tag links.
func (s *AccountDeletionService) disposeItems(ctx context.Context, tx repositories.Store, userID string, today time.Time, report *DeletionReport) error {
	items, err := tx.Items().ListByOwner(ctx, userID)
	if err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		approved, err := tx.Loans().ListByItem(ctx, item.ID, models.LoanApproved)
		if err != nil {
			return err
		}
		if hasActiveLoan(approved, today) {
			item.OwnerID = nil
			item.Available = false
			if err := tx.Items().Update(ctx, item); err != nil {
				return err
			}
			report.ItemsOrphaned++
			continue
		}

		requestIDs, err := tx.Loans().DeleteByItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if err := tx.Feedback().DeleteByLoanRequests(ctx, requestIDs); err != nil {
			return err
		}
		if err := tx.Messages().DeleteByItem(ctx, item.ID, requestIDs); err != nil {
			return err
		}
		if err := tx.Items().Delete(ctx, item.ID); err != nil {
			return err
		}
		if item.ImageURL != "" {
			report.MediaHandles = append(report.MediaHandles, item.ImageURL)
		}
		report.ItemsDeleted++
	}
	return nil
}

func hasActiveLoan(loans []models.LoanRequest, today time.Time) bool {
	for i := range loans {
		if loans[i].IsActive(today) {
			return true
		}
	}
	return false
}

func (s *AccountDeletionService) deleteMedia(ctx context.Context, log *zap.Logger, handles []string) {
	for _, h := range handles {
		if err := s.media.Delete(ctx, h); err != nil {
			log.Warn("failed to delete media", zap.String("handle", h), zap.Error(err))
		}
	}
}
