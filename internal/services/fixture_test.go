package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lendloop/internal/clock"
	"lendloop/internal/database"
	"lendloop/internal/models"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"
	"lendloop/internal/services"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)

// recordingSink collects notifications in memory.
type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingSink) Send(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSink) byKind(kind notify.Kind) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notification
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// recordingMedia records deleted handles and optionally fails.
type recordingMedia struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (m *recordingMedia) Delete(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, handle)
	return nil
}

type fixture struct {
	ctx       context.Context
	store     *repositories.GORMStore
	clock     *clock.Fixed
	sink      *recordingSink
	media     *recordingMedia
	loans     *services.LoanService
	circles   *services.CircleService
	deletion  *services.AccountDeletionService
	reminders *services.ReminderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.NewTestDB(t)
	f := &fixture{
		ctx:   context.Background(),
		store: repositories.NewGORMStore(db),
		clock: clock.NewFixed(testNow),
		sink:  &recordingSink{},
		media: &recordingMedia{},
	}
	log := zap.NewNop()
	f.loans = services.NewLoanService(f.store, f.sink, f.clock, log)
	f.circles = services.NewCircleService(f.store, f.sink, f.clock, log)
	f.deletion = services.NewAccountDeletionService(f.store, f.loans, f.circles, f.media, f.sink, f.clock, log)
	f.reminders = services.NewReminderService(f.store, f.sink, f.clock, log)
	return f
}

// day returns the calendar date offset days from the fixture's today.
func (f *fixture) day(offset int) time.Time {
	return clock.Today(f.clock).AddDate(0, 0, offset)
}

func (f *fixture) user(t *testing.T, first string) *models.User {
	t.Helper()
	u := &models.User{
		Email:     strings.ToLower(first) + "@example.com",
		Password:  "hashed",
		FirstName: first,
		LastName:  "Tester",
	}
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) siteAdmin(t *testing.T, first string) *models.User {
	t.Helper()
	u := f.user(t, first)
	u.IsAdmin = true
	require.NoError(t, f.store.Users().Update(f.ctx, u))
	return u
}

func (f *fixture) item(t *testing.T, owner *models.User, name string) *models.Item {
	t.Helper()
	it := &models.Item{
		Name:       name,
		CategoryID: "tools",
		OwnerID:    &owner.ID,
		Available:  true,
		ImageURL:   "items/" + strings.ToLower(name) + ".jpg",
	}
	require.NoError(t, f.store.Items().Create(f.ctx, it))
	return it
}

// loan inserts a request directly in the given status.
func (f *fixture) loan(t *testing.T, item *models.Item, borrower *models.User, start, end time.Time, status models.LoanStatus) *models.LoanRequest {
	t.Helper()
	req := &models.LoanRequest{
		ItemID:     item.ID,
		BorrowerID: &borrower.ID,
		StartDate:  start,
		EndDate:    end,
		Status:     status,
	}
	require.NoError(t, f.store.Loans().Create(f.ctx, req))
	return req
}

func (f *fixture) reload(t *testing.T, req *models.LoanRequest) *models.LoanRequest {
	t.Helper()
	got, err := f.store.Loans().GetByID(f.ctx, req.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) circle(t *testing.T, name string, admin *models.User, members ...*models.User) *models.Circle {
	t.Helper()
	c := &models.Circle{Name: name}
	require.NoError(t, f.store.Circles().Create(f.ctx, c))
	joined := testNow.Add(-time.Hour * 24 * 30)
	require.NoError(t, f.store.Circles().AddMember(f.ctx, &models.CircleMember{
		CircleID: c.ID, UserID: admin.ID, IsAdmin: true, JoinedAt: joined,
	}))
	for i, m := range members {
		require.NoError(t, f.store.Circles().AddMember(f.ctx, &models.CircleMember{
			CircleID: c.ID, UserID: m.ID, JoinedAt: joined.Add(time.Duration(i+1) * time.Hour),
		}))
	}
	return c
}

func actor(u *models.User) models.Actor {
	return models.Actor{UserID: u.ID, IsAdmin: u.IsAdmin}
}

var errBoom = errors.New("boom")
