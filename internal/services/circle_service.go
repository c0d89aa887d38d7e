package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"lendloop/internal/apperrors"
	"lendloop/internal/clock"
	"lendloop/internal/models"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"

	"go.uber.org/zap"
)

// CircleService manages circle membership and guarantees that a circle with
// members never loses its last admin.
type CircleService struct {
	store    repositories.Store
	notifier notify.Sink
	clock    clock.Clock
	log      *zap.Logger
}

// NewCircleService creates a new CircleService.
func NewCircleService(store repositories.Store, notifier notify.Sink, clk clock.Clock, log *zap.Logger) *CircleService {
	return &CircleService{
		store:    store,
		notifier: notifier,
		clock:    clk,
		log:      log.Named("circles"),
	}
}

// IsAdmin reports whether userID is an admin member of the circle.
func (s *CircleService) IsAdmin(ctx context.Context, circleID, userID string) (bool, error) {
	m, err := s.store.Circles().GetMember(ctx, circleID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.IsAdmin, nil
}

// CountAdmins returns the number of admin members of the circle.
func (s *CircleService) CountAdmins(ctx context.Context, circleID string) (int64, error) {
	return s.store.Circles().CountAdmins(ctx, circleID)
}

// SelectSuccessor picks who inherits admin rights when departingID leaves:
// the earliest-joined remaining non-admin member, ties broken by user ID.
// It returns nil when no other member remains.
func SelectSuccessor(members []models.CircleMember, departingID string) *models.CircleMember {
	var candidates []models.CircleMember
	for _, m := range members {
		if m.UserID != departingID && !m.IsAdmin {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].JoinedAt.Equal(candidates[j].JoinedAt) {
			return candidates[i].JoinedAt.Before(candidates[j].JoinedAt)
		}
		return candidates[i].UserID < candidates[j].UserID
	})
	return &candidates[0]
}

// TransferAuthority promotes a successor if departingID is the circle's only
// admin. It must run inside the caller's transaction: the circle row is
// locked first so two departing admins cannot both observe the other as the
// remaining admin. It returns the promoted member, or nil when no promotion
// was needed or possible.
func (s *CircleService) TransferAuthority(ctx context.Context, tx repositories.Store, circleID, departingID string) (*models.CircleMember, error) {
	if _, err := tx.Circles().Lock(ctx, circleID); err != nil {
		return nil, err
	}
	members, err := tx.Circles().ListMembers(ctx, circleID)
	if err != nil {
		return nil, err
	}

	var departingIsAdmin bool
	admins := 0
	for _, m := range members {
		if m.IsAdmin {
			admins++
			if m.UserID == departingID {
				departingIsAdmin = true
			}
		}
	}
	if !departingIsAdmin || admins > 1 {
		return nil, nil
	}

	successor := SelectSuccessor(members, departingID)
	if successor == nil {
		return nil, nil
	}
	if err := tx.Circles().SetAdmin(ctx, circleID, successor.UserID, true); err != nil {
		return nil, err
	}
	successor.IsAdmin = true
	s.log.Info("circle admin transferred",
		zap.String("circle_id", circleID),
		zap.String("from_user_id", departingID),
		zap.String("to_user_id", successor.UserID))
	return successor, nil
}

// Create creates a circle with the actor as its first admin.
func (s *CircleService) Create(ctx context.Context, actor models.Actor, circle *models.Circle) error {
	circle.Name = strings.TrimSpace(circle.Name)
	if circle.Name == "" {
		return apperrors.Invalid("circle name is required")
	}
	return s.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().GetActiveByID(ctx, actor.UserID); err != nil {
			return err
		}
		if err := tx.Circles().Create(ctx, circle); err != nil {
			return err
		}
		return tx.Circles().AddMember(ctx, &models.CircleMember{
			CircleID: circle.ID,
			UserID:   actor.UserID,
			IsAdmin:  true,
			JoinedAt: s.clock.Now(),
		})
	})
}

// Join adds the actor to a circle that does not require approval. The first
// member of a circle without admins becomes its admin.
func (s *CircleService) Join(ctx context.Context, actor models.Actor, circleID string) (*models.CircleMember, error) {
	var member *models.CircleMember
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().GetActiveByID(ctx, actor.UserID); err != nil {
			return err
		}
		circle, err := tx.Circles().Lock(ctx, circleID)
		if err != nil {
			return err
		}
		if circle.RequiresApproval {
			return apperrors.Forbidden("circle requires approval to join")
		}
		member, err = s.addMember(ctx, tx, circleID, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user joined circle", zap.String("circle_id", circleID), zap.String("user_id", actor.UserID))
	return member, nil
}

// RequestToJoin files a join request for a circle that requires approval and
// tells the circle's admins about it.
func (s *CircleService) RequestToJoin(ctx context.Context, actor models.Actor, circleID, message string) (*models.CircleJoinRequest, error) {
	var (
		req *models.CircleJoinRequest
		out outbox
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		out.reset()
		user, err := tx.Users().GetActiveByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		circle, err := tx.Circles().GetByID(ctx, circleID)
		if err != nil {
			return err
		}
		if !circle.RequiresApproval {
			return apperrors.Invalid("circle is open, join it directly")
		}
		if err := s.ensureNotMember(ctx, tx, circleID, actor.UserID); err != nil {
			return err
		}
		existing, err := tx.JoinRequests().FindPending(ctx, circleID, actor.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.Conflict("a join request is already pending")
		}

		req = &models.CircleJoinRequest{
			CircleID: circleID,
			UserID:   actor.UserID,
			Message:  strings.TrimSpace(message),
			Status:   models.JoinRequestPending,
		}
		if err := tx.JoinRequests().Create(ctx, req); err != nil {
			return err
		}

		members, err := tx.Circles().ListMembers(ctx, circleID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if !m.IsAdmin {
				continue
			}
			admin, err := tx.Users().GetByID(ctx, m.UserID)
			if err != nil {
				return err
			}
			out.add(admin, notify.KindJoinRequested, map[string]any{
				"circle_id":       circle.ID,
				"circle_name":     circle.Name,
				"join_request_id": req.ID,
				"requester_name":  user.FullName(),
				"message":         req.Message,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.flush(ctx, s.notifier, s.log)
	return req, nil
}

// ReviewJoinRequest approves or rejects a pending join request. Only admins
// of the circle may review.
func (s *CircleService) ReviewJoinRequest(ctx context.Context, actor models.Actor, requestID string, approve bool) (*models.CircleJoinRequest, error) {
	var (
		req *models.CircleJoinRequest
		out outbox
	)
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		out.reset()
		var err error
		if req, err = tx.JoinRequests().GetByID(ctx, requestID); err != nil {
			return err
		}
		circle, err := tx.Circles().Lock(ctx, req.CircleID)
		if err != nil {
			return err
		}
		reviewer, err := tx.Circles().GetMember(ctx, circle.ID, actor.UserID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if reviewer == nil || !reviewer.IsAdmin {
			return apperrors.Forbidden("only circle admins can review join requests")
		}
		if req.Status != models.JoinRequestPending {
			return apperrors.Conflict(fmt.Sprintf("join request is already %s", req.Status))
		}

		to, kind := models.JoinRequestRejected, notify.KindJoinRejected
		if approve {
			to, kind = models.JoinRequestApproved, notify.KindJoinApproved
		}
		if err := tx.JoinRequests().UpdateStatus(ctx, req, to); err != nil {
			return err
		}

		requester, err := tx.Users().GetByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if requester.IsDeleted {
			return nil
		}
		if approve {
			if _, err := s.addMember(ctx, tx, circle.ID, requester.ID); err != nil {
				return err
			}
		}
		out.add(requester, kind, map[string]any{
			"circle_id":   circle.ID,
			"circle_name": circle.Name,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.flush(ctx, s.notifier, s.log)
	return req, nil
}

// SetMemberAdmin grants or revokes admin rights of a circle member. Only
// circle admins may change roles, and the circle's last admin cannot be
// revoked while the circle has members.
func (s *CircleService) SetMemberAdmin(ctx context.Context, actor models.Actor, circleID, userID string, isAdmin bool) (*models.CircleMember, error) {
	var target *models.CircleMember
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Circles().Lock(ctx, circleID); err != nil {
			return err
		}
		caller, err := tx.Circles().GetMember(ctx, circleID, actor.UserID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if caller == nil || !caller.IsAdmin {
			return apperrors.Forbidden("only circle admins can change admin rights")
		}
		if target, err = tx.Circles().GetMember(ctx, circleID, userID); err != nil {
			return err
		}
		if target.IsAdmin == isAdmin {
			return nil
		}
		if !isAdmin {
			admins, err := tx.Circles().CountAdmins(ctx, circleID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return apperrors.Conflict("cannot revoke the last admin of a circle")
			}
		}
		if err := tx.Circles().SetAdmin(ctx, circleID, userID, isAdmin); err != nil {
			return err
		}
		target.IsAdmin = isAdmin
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("circle admin rights changed",
		zap.String("circle_id", circleID),
		zap.String("user_id", userID),
		zap.Bool("is_admin", isAdmin),
		zap.String("actor_id", actor.UserID))
	return target, nil
}

// LeaveResult describes the effect of a voluntary departure.
type LeaveResult struct {
	Successor     *models.CircleMember
	CircleDeleted bool
}

// Leave removes the actor from the circle, handing admin rights to a
// successor when needed. The last member leaving deletes the circle along
// with its join requests and circle-scoped messages.
func (s *CircleService) Leave(ctx context.Context, actor models.Actor, circleID string) (*LeaveResult, error) {
	var res LeaveResult
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		res = LeaveResult{}
		if _, err := tx.Circles().GetMember(ctx, circleID, actor.UserID); err != nil {
			return err
		}
		successor, err := s.TransferAuthority(ctx, tx, circleID, actor.UserID)
		if err != nil {
			return err
		}
		res.Successor = successor
		if err := tx.Circles().RemoveMember(ctx, circleID, actor.UserID); err != nil {
			return err
		}

		remaining, err := tx.Circles().ListMembers(ctx, circleID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}
		if err := tx.JoinRequests().DeleteByCircle(ctx, circleID); err != nil {
			return err
		}
		if err := tx.Messages().DeleteByCircle(ctx, circleID); err != nil {
			return err
		}
		if err := tx.Circles().Delete(ctx, circleID); err != nil {
			return err
		}
		res.CircleDeleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user left circle",
		zap.String("circle_id", circleID),
		zap.String("user_id", actor.UserID),
		zap.Bool("circle_deleted", res.CircleDeleted))
	return &res, nil
}

func (s *CircleService) ensureNotMember(ctx context.Context, tx repositories.Store, circleID, userID string) error {
	_, err := tx.Circles().GetMember(ctx, circleID, userID)
	switch {
	case err == nil:
		return apperrors.Conflict("already a member of this circle")
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *CircleService) addMember(ctx context.Context, tx repositories.Store, circleID, userID string) (*models.CircleMember, error) {
	if err := s.ensureNotMember(ctx, tx, circleID, userID); err != nil {
		return nil, err
	}
	admins, err := tx.Circles().CountAdmins(ctx, circleID)
	if err != nil {
		return nil, err
	}
	member := &models.CircleMember{
		CircleID: circleID,
		UserID:   userID,
		IsAdmin:  admins == 0,
		JoinedAt: s.clock.Now(),
	}
	if err := tx.Circles().AddMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}
