package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/models"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"
	"lendloop/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type deletionScenario struct {
	user, ben, carla, dan, t1, t2 *models.User
	drill, saw, kettle            *models.Item
	activeLoan                    *models.LoanRequest
	ownPending                    *models.LoanRequest
	incoming                      *models.LoanRequest
	circle                        *models.Circle
}

func setupDeletion(t *testing.T, f *fixture) *deletionScenario {
	t.Helper()
	s := &deletionScenario{
		user:  f.user(t, "Uma"),
		ben:   f.user(t, "Ben"),
		carla: f.user(t, "Carla"),
		dan:   f.user(t, "Dan"),
		t1:    f.user(t, "Tom"),
		t2:    f.user(t, "Tina"),
	}
	s.user.ProfileImageURL = "profiles/uma.png"
	require.NoError(t, f.store.Users().Update(f.ctx, s.user))

	s.drill = f.item(t, s.user, "Drill")
	s.saw = f.item(t, s.user, "Saw")
	s.kettle = f.item(t, s.carla, "Kettle")

	s.activeLoan = f.loan(t, s.saw, s.ben, f.day(-2), f.day(3), models.LoanApproved)
	f.loan(t, s.drill, s.ben, f.day(-20), f.day(-10), models.LoanCompleted)
	s.incoming = f.loan(t, s.drill, s.dan, f.day(5), f.day(6), models.LoanPending)
	s.ownPending = f.loan(t, s.kettle, s.user, f.day(1), f.day(2), models.LoanPending)

	require.NoError(t, f.store.Feedback().Create(f.ctx, &models.Feedback{
		LoanRequestID: s.activeLoan.ID, ReviewerID: s.user.ID, Rating: models.RatingGood,
	}))

	s.circle = f.circle(t, "Makers", s.user, s.t1, s.t2)
	other := &models.Circle{Name: "Quilters", RequiresApproval: true}
	require.NoError(t, f.store.Circles().Create(f.ctx, other))
	require.NoError(t, f.store.JoinRequests().Create(f.ctx, &models.CircleJoinRequest{
		CircleID: other.ID, UserID: s.user.ID, Status: models.JoinRequestPending,
	}))
	return s
}

func TestAccountDeletion_FullCascade(t *testing.T) {
	f := newFixture(t)
	s := setupDeletion(t, f)

	report, err := f.deletion.DeleteAccount(f.ctx, actor(s.user), s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CanceledRequests)
	assert.Equal(t, 1, report.DeniedRequests)
	assert.Equal(t, 1, report.PromotedSuccessors)
	assert.Equal(t, int64(1), report.MembershipsRemoved)
	assert.Equal(t, int64(1), report.JoinRequestsDeleted)
	assert.Equal(t, int64(1), report.FeedbackDeleted)
	assert.Equal(t, 1, report.ItemsOrphaned)
	assert.Equal(t, 1, report.ItemsDeleted)
	assert.False(t, report.ByAdmin)

	// Account is anonymized, never removed.
	gone, err := f.store.Users().GetByID(f.ctx, s.user.ID)
	require.NoError(t, err)
	assert.True(t, gone.IsDeleted)
	assert.NotNil(t, gone.DeletedAt)
	assert.True(t, strings.HasPrefix(gone.Email, "deleted_"))
	assert.Empty(t, gone.ProfileImageURL)

	// Pending requests resolved; the request still names the anonymized borrower.
	own := f.reload(t, s.ownPending)
	assert.Equal(t, models.LoanCanceled, own.Status)
	assert.True(t, own.IsBorrowedBy(s.user.ID))

	// Active loan keeps its orphaned item.
	saw, err := f.store.Items().GetByID(f.ctx, s.saw.ID)
	require.NoError(t, err)
	assert.True(t, saw.IsOrphaned())
	assert.False(t, saw.Available)
	assert.Equal(t, models.LoanApproved, f.reload(t, s.activeLoan).Status)

	// Idle item is gone with its requests.
	_, err = f.store.Items().GetByID(f.ctx, s.drill.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.store.Loans().GetByID(f.ctx, s.incoming.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Circle authority passed to the earliest member.
	isAdmin, err := f.circles.IsAdmin(f.ctx, s.circle.ID, s.t1.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)
	memberships, err := f.store.Circles().ListMembershipsByUser(f.ctx, s.user.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	// Media of removed things only.
	assert.ElementsMatch(t, []string{"profiles/uma.png", s.drill.ImageURL}, f.media.deleted)

	// Confirmation goes to the identity the user had before anonymization.
	confirm := f.sink.byKind(notify.KindAccountDeleted)
	require.Len(t, confirm, 1)
	assert.Equal(t, "uma@example.com", confirm[0].Recipient.Email)
	assert.Equal(t, "Uma Tester", confirm[0].Recipient.Name)

	denied := f.sink.byKind(notify.KindLoanDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, s.dan.ID, denied[0].Recipient.UserID)
}

func TestAccountDeletion_TwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Uma")

	_, err := f.deletion.DeleteAccount(f.ctx, actor(u), u.ID)
	require.NoError(t, err)
	f.sink.reset()

	_, err = f.deletion.DeleteAccount(f.ctx, actor(u), u.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, errors.Is(err, apperrors.ErrCascadeStepFailed))
	assert.Empty(t, f.sink.byKind(notify.KindAccountDeleted))
}

func TestAccountDeletion_ByAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.siteAdmin(t, "Ada")
	target := f.user(t, "Uma")
	bystander := f.user(t, "Bea")

	_, err := f.deletion.DeleteAccount(f.ctx, actor(bystander), target.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	report, err := f.deletion.DeleteAccount(f.ctx, actor(admin), target.ID)
	require.NoError(t, err)
	assert.True(t, report.ByAdmin)

	actions, err := f.store.AdminActions().ListByTarget(f.ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, services.AdminActionDeleteUser, actions[0].ActionType)
	assert.Equal(t, admin.ID, actions[0].AdminUserID)
	assert.Contains(t, actions[0].Details, "uma@example.com")
}

func TestAccountDeletion_OrphanedLoanCanStillComplete(t *testing.T) {
	f := newFixture(t)
	s := setupDeletion(t, f)

	_, err := f.deletion.DeleteAccount(f.ctx, actor(s.user), s.user.ID)
	require.NoError(t, err)

	available, err := f.loans.ItemAvailability(f.ctx, s.saw.ID)
	require.NoError(t, err)
	assert.False(t, available)

	f.clock.Advance(4 * 24 * time.Hour)
	done, err := f.loans.MarkCompleted(f.ctx, actor(s.ben), s.activeLoan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanCompleted, done.Status)
}

func TestAccountDeletion_SoleMemberLeavesEmptyCircle(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Uma")
	newcomer := f.user(t, "Nia")
	c := f.circle(t, "Solo", u)

	report, err := f.deletion.DeleteAccount(f.ctx, actor(u), u.ID)
	require.NoError(t, err)
	assert.Zero(t, report.PromotedSuccessors)

	_, err = f.store.Circles().GetByID(f.ctx, c.ID)
	require.NoError(t, err)
	n, err := f.circles.CountAdmins(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	m, err := f.circles.Join(f.ctx, actor(newcomer), c.ID)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin)
}

// failingStore makes DeleteByReviewer fail inside transactions.
type failingStore struct {
	repositories.Store
}

func (s failingStore) Feedback() repositories.FeedbackRepository {
	return failingFeedback{s.Store.Feedback()}
}

func (s failingStore) Transaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repositories.Store) error {
		return fn(failingStore{tx})
	})
}

type failingFeedback struct {
	repositories.FeedbackRepository
}

func (failingFeedback) DeleteByReviewer(context.Context, string) (int64, error) {
	return 0, errBoom
}

func TestAccountDeletion_RollsBackOnStepFailure(t *testing.T) {
	f := newFixture(t)
	s := setupDeletion(t, f)

	store := failingStore{f.store}
	loans := services.NewLoanService(store, f.sink, f.clock, zap.NewNop())
	circles := services.NewCircleService(store, f.sink, f.clock, zap.NewNop())
	deletion := services.NewAccountDeletionService(store, loans, circles, f.media, f.sink, f.clock, zap.NewNop())

	_, err := deletion.DeleteAccount(f.ctx, actor(s.user), s.user.ID)
	require.ErrorIs(t, err, apperrors.ErrCascadeStepFailed)
	require.ErrorIs(t, err, errBoom)
	var ce *apperrors.CascadeError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, services.StepDeleteContributions, ce.Step)

	// Nothing from the earlier steps survived.
	u, err := f.store.Users().GetByID(f.ctx, s.user.ID)
	require.NoError(t, err)
	assert.False(t, u.IsDeleted)
	assert.Equal(t, models.LoanPending, f.reload(t, s.ownPending).Status)
	assert.Equal(t, models.LoanPending, f.reload(t, s.incoming).Status)

	isAdmin, err := f.circles.IsAdmin(f.ctx, s.circle.ID, s.user.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)
	isAdmin, err = f.circles.IsAdmin(f.ctx, s.circle.ID, s.t1.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	assert.Empty(t, f.media.deleted)
	assert.Empty(t, f.sink.byKind(notify.KindAccountDeleted))
}
