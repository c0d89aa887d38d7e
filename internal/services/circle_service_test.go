package services_test

import (
	"testing"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/models"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"
	"lendloop/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectSuccessor(t *testing.T) {
	t0 := testNow
	tests := []struct {
		name    string
		members []models.CircleMember
		want    string
	}{
		{
			name:    "only the departing admin",
			members: []models.CircleMember{{UserID: "a", IsAdmin: true, JoinedAt: t0}},
			want:    "",
		},
		{
			name: "earliest joined wins",
			members: []models.CircleMember{
				{UserID: "a", IsAdmin: true, JoinedAt: t0},
				{UserID: "late", JoinedAt: t0.Add(2 * time.Hour)},
				{UserID: "early", JoinedAt: t0.Add(time.Hour)},
			},
			want: "early",
		},
		{
			name: "ties broken by user id",
			members: []models.CircleMember{
				{UserID: "a", IsAdmin: true, JoinedAt: t0},
				{UserID: "zed", JoinedAt: t0.Add(time.Hour)},
				{UserID: "bob", JoinedAt: t0.Add(time.Hour)},
			},
			want: "bob",
		},
		{
			name: "other admins are not candidates",
			members: []models.CircleMember{
				{UserID: "a", IsAdmin: true, JoinedAt: t0},
				{UserID: "b", IsAdmin: true, JoinedAt: t0.Add(time.Hour)},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.SelectSuccessor(tt.members, "a")
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.UserID)
		})
	}
}

func TestCircleService_LeavePromotesSuccessor(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "Alice")
	t1 := f.user(t, "Tom")
	t2 := f.user(t, "Tina")
	c := f.circle(t, "Makers", admin, t1, t2)

	res, err := f.circles.Leave(f.ctx, actor(admin), c.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Successor)
	assert.Equal(t, t1.ID, res.Successor.UserID)
	assert.False(t, res.CircleDeleted)

	isAdmin, err := f.circles.IsAdmin(f.ctx, c.ID, t1.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	n, err := f.circles.CountAdmins(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	isAdmin, err = f.circles.IsAdmin(f.ctx, c.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestCircleService_LeaveWithAnotherAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "Alice")
	coAdmin := f.user(t, "Carol")
	member := f.user(t, "Tom")
	c := f.circle(t, "Makers", admin, coAdmin, member)
	require.NoError(t, f.store.Circles().SetAdmin(f.ctx, c.ID, coAdmin.ID, true))

	res, err := f.circles.Leave(f.ctx, actor(admin), c.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Successor)

	isAdmin, err := f.circles.IsAdmin(f.ctx, c.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestCircleService_SetMemberAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "Alice")
	carol := f.user(t, "Carol")
	tom := f.user(t, "Tom")
	c := f.circle(t, "Makers", admin, carol, tom)

	_, err := f.circles.SetMemberAdmin(f.ctx, actor(tom), c.ID, carol.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.circles.SetMemberAdmin(f.ctx, actor(admin), c.ID, admin.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "last admin cannot be revoked while members remain")

	m, err := f.circles.SetMemberAdmin(f.ctx, actor(admin), c.ID, carol.ID, true)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin)

	count, err := f.circles.CountAdmins(f.ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// With a second admin in place the first may step down.
	_, err = f.circles.SetMemberAdmin(f.ctx, actor(carol), c.ID, admin.ID, false)
	require.NoError(t, err)
	isAdmin, err := f.circles.IsAdmin(f.ctx, c.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	_, err = f.circles.SetMemberAdmin(f.ctx, actor(carol), c.ID, carol.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.circles.SetMemberAdmin(f.ctx, actor(carol), c.ID, "stranger", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCircleService_LastMemberLeavingDeletesCircle(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "Alice")
	c := f.circle(t, "Solo", admin)

	res, err := f.circles.Leave(f.ctx, actor(admin), c.ID)
	require.NoError(t, err)
	assert.True(t, res.CircleDeleted)

	_, err = f.store.Circles().GetByID(f.ctx, c.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.circles.Leave(f.ctx, actor(admin), c.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCircleService_TransferAuthorityInsideTransaction(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "Alice")
	member := f.user(t, "Tom")
	c := f.circle(t, "Makers", admin, member)

	err := f.store.Transaction(f.ctx, func(tx repositories.Store) error {
		successor, err := f.circles.TransferAuthority(f.ctx, tx, c.ID, admin.ID)
		require.NoError(t, err)
		require.NotNil(t, successor)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	isAdmin, err := f.circles.IsAdmin(f.ctx, c.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin, "promotion must roll back with the transaction")
}

func TestCircleService_Join(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice")
	bob := f.user(t, "Bob")

	open := &models.Circle{Name: "Open"}
	require.NoError(t, f.circles.Create(f.ctx, actor(alice), open))

	m, err := f.circles.Join(f.ctx, actor(bob), open.ID)
	require.NoError(t, err)
	assert.False(t, m.IsAdmin)

	_, err = f.circles.Join(f.ctx, actor(bob), open.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	closed := &models.Circle{Name: "Closed", RequiresApproval: true}
	require.NoError(t, f.circles.Create(f.ctx, actor(alice), closed))
	_, err = f.circles.Join(f.ctx, actor(bob), closed.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCircleService_JoinAdminlessCircle(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "Bob")
	empty := &models.Circle{Name: "Empty"}
	require.NoError(t, f.store.Circles().Create(f.ctx, empty))

	m, err := f.circles.Join(f.ctx, actor(bob), empty.ID)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin)
}

func TestCircleService_JoinRequests(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice")
	bob := f.user(t, "Bob")
	carl := f.user(t, "Carl")

	closed := &models.Circle{Name: "Closed", RequiresApproval: true}
	require.NoError(t, f.circles.Create(f.ctx, actor(alice), closed))

	req, err := f.circles.RequestToJoin(f.ctx, actor(bob), closed.ID, "please")
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestPending, req.Status)

	_, err = f.circles.RequestToJoin(f.ctx, actor(bob), closed.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	asked := f.sink.byKind(notify.KindJoinRequested)
	require.Len(t, asked, 1)
	assert.Equal(t, alice.ID, asked[0].Recipient.UserID)

	_, err = f.circles.ReviewJoinRequest(f.ctx, actor(carl), req.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	reviewed, err := f.circles.ReviewJoinRequest(f.ctx, actor(alice), req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.JoinRequestApproved, reviewed.Status)

	_, err = f.store.Circles().GetMember(f.ctx, closed.ID, bob.ID)
	assert.NoError(t, err)
	require.Len(t, f.sink.byKind(notify.KindJoinApproved), 1)

	_, err = f.circles.ReviewJoinRequest(f.ctx, actor(alice), req.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
